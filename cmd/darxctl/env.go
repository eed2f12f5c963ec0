package main

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/darx-site-generator/internal/app"
	"github.com/yungbote/darx-site-generator/internal/data/db"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

// env is what a command needs: parsed config, a quiet logger and, when
// asked for, the database.
type env struct {
	cfg app.Config
	log *logger.Logger
	pg  *db.PostgresService
}

func (e *env) DB() *gorm.DB { return e.pg.DB() }

func withEnv(ctx context.Context, needDB bool, fn func(ctx context.Context, e *env) error) error {
	cfg, err := app.ParseConfig(os.Environ())
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	log, err := logger.New("test")
	if err != nil {
		return err
	}
	defer log.Sync()

	e := &env{cfg: cfg, log: log}
	if needDB {
		pg, err := db.NewPostgresService(log, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		e.pg = pg
	}
	return fn(ctx, e)
}
