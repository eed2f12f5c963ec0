package clients

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/darx-site-generator/internal/data/db"
	types "github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type ClientRepo interface {
	Create(dbc dbctx.Context, c *types.Client) error
	// GetBySlug returns nil, nil when no client has slug.
	GetBySlug(dbc dbctx.Context, slug string) (*types.Client, error)
	List(dbc dbctx.Context, status string) ([]*types.Client, error)
	UpdateStatus(dbc dbctx.Context, slug string, status types.Status) error
	SlugExists(dbc dbctx.Context, slug string) (bool, error)
}

type clientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClientRepo(db *gorm.DB, baseLog *logger.Logger) ClientRepo {
	return &clientRepo{db: db, log: baseLog.With("repo", "ClientRepo")}
}

func (r *clientRepo) Create(dbc dbctx.Context, c *types.Client) error {
	if c == nil {
		return nil
	}
	if err := dbc.Or(r.db).Create(c).Error; err != nil {
		return db.Translate("create client "+c.Slug, err)
	}
	return nil
}

func (r *clientRepo) GetBySlug(dbc dbctx.Context, slug string) (*types.Client, error) {
	var out types.Client
	err := dbc.Or(r.db).Where("client_slug = ?", slug).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Translate("get client "+slug, err)
	}
	return &out, nil
}

func (r *clientRepo) List(dbc dbctx.Context, status string) ([]*types.Client, error) {
	var results []*types.Client
	q := dbc.Or(r.db).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, db.Translate("list clients", err)
	}
	return results, nil
}

func (r *clientRepo) UpdateStatus(dbc dbctx.Context, slug string, status types.Status) error {
	res := dbc.Or(r.db).
		Model(&types.Client{}).
		Where("client_slug = ?", slug).
		Update("status", string(status))
	if res.Error != nil {
		return db.Translate("update client status "+slug, res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.NotFoundf(apierr.UpstreamStore, "client %q not found", slug)
	}
	return nil
}

func (r *clientRepo) SlugExists(dbc dbctx.Context, slug string) (bool, error) {
	var n int64
	if err := dbc.Or(r.db).Model(&types.Client{}).Where("client_slug = ?", slug).Count(&n).Error; err != nil {
		return false, db.Translate("check client slug", err)
	}
	return n > 0, nil
}
