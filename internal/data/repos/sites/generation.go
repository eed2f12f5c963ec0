package sites

import (
	"gorm.io/gorm"

	"github.com/yungbote/darx-site-generator/internal/data/db"
	types "github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type GenerationRepo interface {
	Create(dbc dbctx.Context, g *types.SiteGeneration) error
	// ListRecent returns up to limit runs, newest first. An empty slug lists all.
	ListRecent(dbc dbctx.Context, slug string, limit int) ([]*types.SiteGeneration, error)
}

type generationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRepo {
	return &generationRepo{db: db, log: baseLog.With("repo", "GenerationRepo")}
}

func (r *generationRepo) Create(dbc dbctx.Context, g *types.SiteGeneration) error {
	if g == nil {
		return nil
	}
	if err := dbc.Or(r.db).Create(g).Error; err != nil {
		return db.Translate("create generation record", err)
	}
	return nil
}

func (r *generationRepo) ListRecent(dbc dbctx.Context, slug string, limit int) ([]*types.SiteGeneration, error) {
	if limit <= 0 {
		limit = 50
	}
	var results []*types.SiteGeneration
	q := dbc.Or(r.db).Order("created_at DESC").Limit(limit)
	if slug != "" {
		q = q.Where("client_slug = ?", slug)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, db.Translate("list generation records", err)
	}
	return results, nil
}
