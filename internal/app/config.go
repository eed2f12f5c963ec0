package app

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/yungbote/darx-site-generator/internal/data/db"
	"github.com/yungbote/darx-site-generator/internal/observability"
	"github.com/yungbote/darx-site-generator/internal/pipeline"
	"github.com/yungbote/darx-site-generator/internal/platform/builderio"
	"github.com/yungbote/darx-site-generator/internal/platform/gcp"
	"github.com/yungbote/darx-site-generator/internal/platform/github"
	"github.com/yungbote/darx-site-generator/internal/platform/llm"
	"github.com/yungbote/darx-site-generator/internal/platform/redisx"
	"github.com/yungbote/darx-site-generator/internal/platform/registry"
	"github.com/yungbote/darx-site-generator/internal/platform/sealer"
	"github.com/yungbote/darx-site-generator/internal/platform/vercel"
	"github.com/yungbote/darx-site-generator/internal/services"
)

// Config is every setting the service reads, parsed once at startup. Each
// platform package owns the env tags of its own section.
type Config struct {
	LogMode         string        `env:"LOG_MODE" envDefault:"development"`
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	LockTTL         time.Duration `env:"GENERATION_LOCK_TTL" envDefault:"15m"`

	Postgres   db.Config
	Redis      redisx.Config
	GCP        gcp.Config
	LLM        llm.Config
	GitHub     github.Config
	Vercel     vercel.Config
	Builder    builderio.Config
	Registry   registry.Config
	Sealer     sealer.Config
	Auth       services.AuthConfig
	Onboarding services.OnboardingConfig
	Poll       pipeline.PollConfig
	Metrics    observability.MetricsConfig
	Otel       observability.OtelConfig
}

// ParseConfig reads the configuration from environ, in os.Environ form.
func ParseConfig(environ []string) (Config, error) {
	var cfg Config
	err := env.ParseWithOptions(&cfg, env.Options{
		Environment: env.ToMap(environ),
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
