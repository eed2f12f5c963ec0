package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/darx-site-generator/internal/http/handlers"
	httpMW "github.com/yungbote/darx-site-generator/internal/http/middleware"
	"github.com/yungbote/darx-site-generator/internal/observability"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	CORSOrigins    []string
	TracingEnabled bool

	AuthHandler    *httpH.AuthHandler
	AuthMiddleware *httpMW.AuthMiddleware

	SiteHandler       *httpH.SiteHandler
	OnboardingHandler *httpH.OnboardingHandler
	RegistryHandler   *httpH.RegistryHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware("darx-site-generator"))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.Health)
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Generation and edits
	if cfg.SiteHandler != nil {
		r.POST("/", cfg.SiteHandler.Generate)
		r.POST("/generate", cfg.SiteHandler.Generate)
		r.POST("/edit", cfg.SiteHandler.Edit)
	}

	// Auth (public)
	if cfg.AuthHandler != nil {
		r.POST("/auth/google", cfg.AuthHandler.Google)
		r.POST("/auth/logout", cfg.AuthHandler.Logout)
	}

	// Link issuance is also reachable by the chat integration's shared secret.
	if cfg.OnboardingHandler != nil {
		if cfg.AuthMiddleware != nil {
			r.POST("/onboard/generate-link", cfg.AuthMiddleware.RequireOperatorOrLinkSecret(), cfg.OnboardingHandler.GenerateLink)
		} else {
			r.POST("/onboard/generate-link", cfg.OnboardingHandler.GenerateLink)
		}
	}

	protected := r.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireOperator())
		}

		if cfg.AuthHandler != nil {
			protected.GET("/auth/me", cfg.AuthHandler.Me)
		}

		// Onboarding
		if cfg.OnboardingHandler != nil {
			protected.GET("/onboard/:token", cfg.OnboardingHandler.Inspect)
			protected.POST("/onboard/:token", cfg.OnboardingHandler.Submit)
		}

		// Site registry
		if cfg.RegistryHandler != nil {
			protected.GET("/sites", cfg.RegistryHandler.List)
			protected.GET("/sites/:slug", cfg.RegistryHandler.Get)
			protected.DELETE("/sites/:slug", cfg.RegistryHandler.Delete)
			protected.POST("/sites/:slug/recover", cfg.RegistryHandler.Recover)
			protected.GET("/sites/:slug/health", cfg.RegistryHandler.Health)
			protected.POST("/sites/:slug/health/check", cfg.RegistryHandler.CheckHealth)
		}
	}

	return r
}
