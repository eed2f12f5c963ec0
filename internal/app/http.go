package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/darx-site-generator/internal/http"
	httpH "github.com/yungbote/darx-site-generator/internal/http/handlers"
	httpMW "github.com/yungbote/darx-site-generator/internal/http/middleware"
	"github.com/yungbote/darx-site-generator/internal/observability"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Auth       *httpH.AuthHandler
	Site       *httpH.SiteHandler
	Onboarding *httpH.OnboardingHandler
	Registry   *httpH.RegistryHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(),
		Auth:       httpH.NewAuthHandler(services.Auth),
		Site:       httpH.NewSiteHandler(log, services.Orchestrator, services.Editor),
		Onboarding: httpH.NewOnboardingHandler(log, services.Onboarding),
		Registry:   httpH.NewRegistryHandler(log, services.Registry),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	if cfg.LogMode == "production" || cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	return http.NewRouter(http.RouterConfig{
		Log:               log,
		Metrics:           observability.Current(),
		CORSOrigins:       cfg.CORSOrigins,
		TracingEnabled:    cfg.Otel.Enabled,
		HealthHandler:     handlers.Health,
		AuthHandler:       handlers.Auth,
		AuthMiddleware:    middleware.Auth,
		SiteHandler:       handlers.Site,
		OnboardingHandler: handlers.Onboarding,
		RegistryHandler:   handlers.Registry,
	})
}
