package services

import (
	"context"

	clientrepo "github.com/yungbote/darx-site-generator/internal/data/repos/clients"
	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
	"github.com/yungbote/darx-site-generator/internal/platform/sealer"
)

// CredentialResolver picks CMS keys by topology: shared sites use the keys
// sealed with the client's onboarding record, dedicated sites the configured
// keys.
type CredentialResolver struct {
	log        *logger.Logger
	onboarding clientrepo.OnboardingRepo
	sealer     *sealer.Sealer
	dedicated  sites.CMSCredentials
}

func NewCredentialResolver(baseLog *logger.Logger, onboarding clientrepo.OnboardingRepo, s *sealer.Sealer, dedicated sites.CMSCredentials) *CredentialResolver {
	return &CredentialResolver{
		log:        baseLog.With("service", "CredentialResolver"),
		onboarding: onboarding,
		sealer:     s,
		dedicated:  dedicated,
	}
}

func (r *CredentialResolver) Resolve(ctx context.Context, slug string, mode sites.SpaceMode) (sites.CMSCredentials, bool, error) {
	if mode != sites.SpaceShared {
		return r.dedicated, r.dedicated.Complete(), nil
	}
	rec, err := r.onboarding.GetBySlug(dbctx.Context{Ctx: ctx}, slug)
	if err != nil {
		return sites.CMSCredentials{}, false, err
	}
	if rec == nil || !rec.HasSealedKeys() {
		r.log.Warn("No stored CMS keys for client", "slug", slug)
		return sites.CMSCredentials{}, false, nil
	}
	if r.sealer == nil {
		r.log.Warn("Stored CMS keys present but no seal key configured", "slug", slug)
		return sites.CMSCredentials{}, false, nil
	}
	pub, err := r.sealer.OpenString(rec.BuilderPublicKeySealed)
	if err != nil {
		return sites.CMSCredentials{}, false, apierr.New(apierr.KindInternal, apierr.UpstreamStore, "open stored public key", err)
	}
	priv, err := r.sealer.OpenString(rec.BuilderPrivateKeySealed)
	if err != nil {
		return sites.CMSCredentials{}, false, apierr.New(apierr.KindInternal, apierr.UpstreamStore, "open stored private key", err)
	}
	creds := sites.CMSCredentials{PublicKey: pub, PrivateKey: priv, SpaceID: rec.BuilderSpaceID, Source: "onboarding"}
	return creds, creds.Complete(), nil
}
