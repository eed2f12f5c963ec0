package services

import (
	"context"

	clientrepo "github.com/yungbote/darx-site-generator/internal/data/repos/clients"
	types "github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

var statusRecommendation = map[types.Status]string{
	types.StatusPendingProvisioning: "Client is pending provisioning. Wait for provisioning to complete before generating.",
	types.StatusPendingOnboarding:   "Client has not completed onboarding. Send them an onboarding link.",
	types.StatusInactive:            "Client has been deactivated. Reactivate the client before generating.",
	types.StatusUnknown:             "Client status is unknown. Check the client record.",
}

// ClientGate admits generation only for active clients.
type ClientGate struct {
	log     *logger.Logger
	clients clientrepo.ClientRepo
}

func NewClientGate(baseLog *logger.Logger, clients clientrepo.ClientRepo) *ClientGate {
	return &ClientGate{log: baseLog.With("service", "ClientGate"), clients: clients}
}

func (g *ClientGate) Admit(ctx context.Context, slug string) error {
	c, err := g.clients.GetBySlug(dbctx.Context{Ctx: ctx}, slug)
	if err != nil {
		return err
	}
	if c == nil {
		return apierr.Validationf("client %q is not registered", slug).
			WithCode("client_not_found").
			WithDetail("current_status", "not_found").
			WithDetail("recommendation", "Onboard the client before generating a site.")
	}
	status := types.ParseStatus(c.Status)
	if status == types.StatusActive {
		return nil
	}
	g.log.Info("Generation refused for inactive client", "slug", slug, "status", c.Status)
	return apierr.Validationf("client %q is not active", slug).
		WithCode("client_not_active").
		WithDetail("current_status", c.Status).
		WithDetail("recommendation", statusRecommendation[status])
}
