package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type Config struct {
	// URL wins over the discrete fields when set.
	URL           string        `env:"DATABASE_URL"`
	Host          string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port          string        `env:"POSTGRES_PORT" envDefault:"5432"`
	User          string        `env:"POSTGRES_USER" envDefault:"postgres"`
	Password      string        `env:"POSTGRES_PASSWORD"`
	Name          string        `env:"POSTGRES_NAME" envDefault:"darx"`
	SSLMode       string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	SlowThreshold time.Duration `env:"POSTGRES_SLOW_THRESHOLD" envDefault:"1s"`
	AutoMigrate   bool          `env:"POSTGRES_AUTO_MIGRATE" envDefault:"true"`
}

func (c Config) DSN() string {
	if u := strings.TrimSpace(c.URL); u != "" {
		return u
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(logg *logger.Logger, cfg Config) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = time.Second
	}
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if cfg.AutoMigrate {
		if err := AutoMigrateAll(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		serviceLog.Info("Postgres tables migrated")
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
