package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	clientrepo "github.com/yungbote/darx-site-generator/internal/data/repos/clients"
	types "github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
	"github.com/yungbote/darx-site-generator/internal/platform/sealer"
)

// OnboardingTokenTTL is fixed; links are not renewable.
const OnboardingTokenTTL = 24 * time.Hour

type OnboardingConfig struct {
	PublicURL string `env:"ONBOARDING_BASE_URL" envDefault:"http://localhost:8080"`
}

// EventPublisher sends provisioning events. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, payload any) error
}

// OnboardingLink is what an operator hands to a new client.
type OnboardingLink struct {
	URL            string `json:"onboarding_url"`
	ClientSlug     string `json:"client_slug"`
	ExpiresInHours int    `json:"expires_in_hours"`
	Token          string `json:"-"`
}

// OnboardingForm is the intake form a client submits.
type OnboardingForm struct {
	ClientName        string         `json:"client_name"`
	ClientSlug        string         `json:"client_slug"`
	ContactEmail      string         `json:"contact_email"`
	WebsiteType       string         `json:"website_type"`
	Industry          string         `json:"industry"`
	Tier              string         `json:"tier"`
	BuilderPublicKey  string         `json:"builder_public_key"`
	BuilderPrivateKey string         `json:"builder_private_key"`
	BuilderSpaceID    string         `json:"builder_space_id"`
	Metadata          map[string]any `json:"metadata"`
}

var (
	emailRe        = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	alphanumericRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	websiteTypes   = map[string]bool{"marketing": true, "ecommerce": true, "documentation": true, "portfolio": true, "blog": true}
)

func (f *OnboardingForm) normalize() {
	f.ClientName = strings.TrimSpace(f.ClientName)
	f.ClientSlug = strings.TrimSpace(f.ClientSlug)
	f.ContactEmail = strings.ToLower(strings.TrimSpace(f.ContactEmail))
	f.WebsiteType = strings.ToLower(strings.TrimSpace(f.WebsiteType))
	f.Industry = strings.TrimSpace(f.Industry)
	f.Tier = strings.ToLower(strings.TrimSpace(f.Tier))
	if f.Tier == "" {
		f.Tier = string(types.TierEntry)
	}
	f.BuilderPublicKey = strings.TrimSpace(f.BuilderPublicKey)
	f.BuilderPrivateKey = strings.TrimSpace(f.BuilderPrivateKey)
	f.BuilderSpaceID = strings.TrimSpace(f.BuilderSpaceID)
}

// Validate returns a validation error listing every bad field.
func (f *OnboardingForm) Validate() error {
	fields := map[string]string{}
	required := map[string]string{
		"client_name":         f.ClientName,
		"client_slug":         f.ClientSlug,
		"contact_email":       f.ContactEmail,
		"website_type":        f.WebsiteType,
		"builder_public_key":  f.BuilderPublicKey,
		"builder_private_key": f.BuilderPrivateKey,
	}
	for name, v := range required {
		if v == "" {
			fields[name] = "required"
		}
	}
	if f.ClientSlug != "" && !types.ValidSlug(f.ClientSlug) {
		fields["client_slug"] = "must be 3-30 lowercase letters, digits or single dashes, starting and ending with a letter or digit"
	}
	if f.ContactEmail != "" && !emailRe.MatchString(f.ContactEmail) {
		fields["contact_email"] = "invalid email address"
	}
	if f.WebsiteType != "" && !websiteTypes[f.WebsiteType] {
		fields["website_type"] = "must be one of marketing, ecommerce, documentation, portfolio, blog"
	}
	if k := f.BuilderPublicKey; k != "" && (len(k) < 20 || !(strings.HasPrefix(k, "pub-") || alphanumericRe.MatchString(k))) {
		fields["builder_public_key"] = "invalid Builder.io public key"
	}
	if k := f.BuilderPrivateKey; k != "" && len(k) < 20 {
		fields["builder_private_key"] = "invalid Builder.io private key"
	}
	if !types.Tier(f.Tier).Valid() {
		fields["tier"] = "must be one of entry, professional, enterprise"
	}
	if len(fields) == 0 {
		return nil
	}
	return apierr.Validationf("invalid onboarding form").WithCode("invalid_form").WithDetail("fields", fields)
}

type OnboardingService struct {
	db         *gorm.DB
	log        *logger.Logger
	cfg        OnboardingConfig
	clients    clientrepo.ClientRepo
	onboarding clientrepo.OnboardingRepo
	tokens     clientrepo.TokenRepo
	sealer     *sealer.Sealer
	events     EventPublisher
	now        func() time.Time
}

func NewOnboardingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg OnboardingConfig,
	clients clientrepo.ClientRepo,
	onboarding clientrepo.OnboardingRepo,
	tokens clientrepo.TokenRepo,
	s *sealer.Sealer,
	events EventPublisher,
) *OnboardingService {
	return &OnboardingService{
		db:         db,
		log:        baseLog.With("service", "OnboardingService"),
		cfg:        cfg,
		clients:    clients,
		onboarding: onboarding,
		tokens:     tokens,
		sealer:     s,
		events:     events,
		now:        time.Now,
	}
}

func (s *OnboardingService) slugTaken(dbc dbctx.Context, slug string) (bool, error) {
	if taken, err := s.onboarding.SlugExists(dbc, slug); err != nil || taken {
		return taken, err
	}
	return s.clients.SlugExists(dbc, slug)
}

// IssueLink creates a single-use onboarding token for rawSlug.
func (s *OnboardingService) IssueLink(ctx context.Context, rawSlug, requestedBy string) (OnboardingLink, error) {
	slug := types.SanitizeSlug(rawSlug)
	if len(slug) < types.MinSlugLen || len(slug) > types.MaxSlugLen {
		return OnboardingLink{}, apierr.Validationf("client_slug must sanitize to %d-%d characters (got %q)", types.MinSlugLen, types.MaxSlugLen, slug)
	}
	dbc := dbctx.Context{Ctx: ctx}
	taken, err := s.slugTaken(dbc, slug)
	if err != nil {
		return OnboardingLink{}, err
	}
	if taken {
		return OnboardingLink{}, apierr.Conflict(apierr.UpstreamNone, "client slug "+slug+" is already in use", nil).WithCode("slug_taken")
	}

	token, err := newOnboardingToken()
	if err != nil {
		return OnboardingLink{}, err
	}
	if err := s.tokens.Create(dbc, &types.OnboardingToken{
		Token:       token,
		ClientSlug:  slug,
		RequestedBy: requestedBy,
		ExpiresAt:   s.now().UTC().Add(OnboardingTokenTTL),
	}); err != nil {
		return OnboardingLink{}, err
	}
	s.log.Info("Onboarding link issued", "client_slug", slug, "requested_by_email", requestedBy)
	return OnboardingLink{
		URL:            strings.TrimRight(s.cfg.PublicURL, "/") + "/onboard/" + token,
		ClientSlug:     slug,
		ExpiresInHours: int(OnboardingTokenTTL / time.Hour),
		Token:          token,
	}, nil
}

func newOnboardingToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Inspect returns the token if it is still valid. It does not consume it.
func (s *OnboardingService) Inspect(ctx context.Context, token string) (*types.OnboardingToken, error) {
	tok, err := s.tokens.Get(dbctx.Context{Ctx: ctx}, token)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, apierr.NotFoundf(apierr.UpstreamNone, "onboarding link not found")
	}
	if !tok.ValidAt(s.now()) {
		return nil, invalidTokenErr(tok, s.now())
	}
	return tok, nil
}

func invalidTokenErr(tok *types.OnboardingToken, now time.Time) error {
	if tok.Used {
		return apierr.Validationf("onboarding link has already been used").WithCode("token_used")
	}
	if !now.Before(tok.ExpiresAt) {
		return apierr.Validationf("onboarding link has expired").WithCode("token_expired")
	}
	return apierr.Validationf("onboarding link is not valid").WithCode("token_invalid")
}

// Submit consumes token and records the client as pending provisioning.
// The token, onboarding row and client row are written in one transaction.
func (s *OnboardingService) Submit(ctx context.Context, token string, form OnboardingForm, submittedBy string) (*types.Client, error) {
	tok, err := s.Inspect(ctx, token)
	if err != nil {
		return nil, err
	}
	form.normalize()
	if form.ClientSlug == "" {
		form.ClientSlug = tok.ClientSlug
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}
	taken, err := s.slugTaken(dbctx.Context{Ctx: ctx}, form.ClientSlug)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apierr.Conflict(apierr.UpstreamNone, "client slug "+form.ClientSlug+" is already in use", nil).WithCode("slug_taken")
	}

	rec := &types.ClientOnboarding{
		ClientSlug:     form.ClientSlug,
		ClientName:     form.ClientName,
		ContactEmail:   form.ContactEmail,
		WebsiteType:    form.WebsiteType,
		Tier:           form.Tier,
		Industry:       form.Industry,
		Status:         string(types.StatusPendingProvisioning),
		BuilderSpaceID: form.BuilderSpaceID,
		SubmittedBy:    submittedBy,
	}
	if err := s.sealKeys(rec, form); err != nil {
		return nil, err
	}
	meta, err := json.Marshal(clientMetadata(form))
	if err != nil {
		return nil, err
	}
	client := &types.Client{
		Slug:         form.ClientSlug,
		Name:         form.ClientName,
		ContactEmail: form.ContactEmail,
		WebsiteType:  form.WebsiteType,
		Tier:         form.Tier,
		Status:       string(types.StatusPendingProvisioning),
		Metadata:     datatypes.JSON(meta),
	}

	now := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		ok, err := s.tokens.Consume(dbc, token, now)
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Validationf("onboarding link has already been used or expired").WithCode("token_invalid")
		}
		if err := s.onboarding.Create(dbc, rec); err != nil {
			return err
		}
		return s.clients.Create(dbc, client)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Onboarding submitted", "client_slug", client.Slug, "tier", client.Tier, "keys_stored", rec.HasSealedKeys())
	s.publish(ctx, client, form)
	return client, nil
}

// sealKeys stores CMS keys for paid tiers when a seal key is configured.
func (s *OnboardingService) sealKeys(rec *types.ClientOnboarding, form OnboardingForm) error {
	if types.Tier(form.Tier) == types.TierEntry {
		return nil
	}
	if s.sealer == nil {
		s.log.Warn("CMS keys not stored: no seal key configured", "client_slug", form.ClientSlug)
		return nil
	}
	pub, err := s.sealer.SealString(form.BuilderPublicKey)
	if err != nil {
		return err
	}
	priv, err := s.sealer.SealString(form.BuilderPrivateKey)
	if err != nil {
		return err
	}
	rec.BuilderPublicKeySealed, rec.BuilderPrivateKeySealed = pub, priv
	return nil
}

func clientMetadata(form OnboardingForm) map[string]any {
	meta := map[string]any{}
	for k, v := range form.Metadata {
		meta[k] = v
	}
	if form.Industry != "" {
		meta["industry"] = form.Industry
	}
	if form.BuilderSpaceID != "" {
		meta["builder_space_id"] = form.BuilderSpaceID
	}
	return meta
}

// ProvisioningEvent is published once a client has onboarded.
type ProvisioningEvent struct {
	ClientID     string         `json:"clientId"`
	ClientSlug   string         `json:"clientSlug"`
	ClientName   string         `json:"clientName"`
	ContactEmail string         `json:"contactEmail"`
	WebsiteType  string         `json:"websiteType"`
	Tier         string         `json:"tier"`
	Metadata     map[string]any `json:"metadata"`
}

func (s *OnboardingService) publish(ctx context.Context, c *types.Client, form OnboardingForm) {
	if s.events == nil {
		return
	}
	evt := ProvisioningEvent{
		ClientID:     c.ID.String(),
		ClientSlug:   c.Slug,
		ClientName:   c.Name,
		ContactEmail: c.ContactEmail,
		WebsiteType:  c.WebsiteType,
		Tier:         c.Tier,
		Metadata:     clientMetadata(form),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("Provisioning event not published", "client_slug", c.Slug, "error", err)
	}
}

// CleanupTokens deletes used and expired tokens.
func (s *OnboardingService) CleanupTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteStale(dbctx.Context{Ctx: ctx}, s.now().UTC())
	if err != nil {
		return 0, err
	}
	s.log.Info("Stale onboarding tokens deleted", "count", n)
	return n, nil
}
