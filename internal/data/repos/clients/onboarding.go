package clients

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/darx-site-generator/internal/data/db"
	types "github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type OnboardingRepo interface {
	Create(dbc dbctx.Context, o *types.ClientOnboarding) error
	// GetBySlug returns nil, nil when nothing was submitted for slug.
	GetBySlug(dbc dbctx.Context, slug string) (*types.ClientOnboarding, error)
	SlugExists(dbc dbctx.Context, slug string) (bool, error)
}

type onboardingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOnboardingRepo(db *gorm.DB, baseLog *logger.Logger) OnboardingRepo {
	return &onboardingRepo{db: db, log: baseLog.With("repo", "OnboardingRepo")}
}

func (r *onboardingRepo) Create(dbc dbctx.Context, o *types.ClientOnboarding) error {
	if o == nil {
		return nil
	}
	if err := dbc.Or(r.db).Create(o).Error; err != nil {
		return db.Translate("create onboarding "+o.ClientSlug, err)
	}
	return nil
}

func (r *onboardingRepo) GetBySlug(dbc dbctx.Context, slug string) (*types.ClientOnboarding, error) {
	var out types.ClientOnboarding
	err := dbc.Or(r.db).Where("client_slug = ?", slug).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Translate("get onboarding "+slug, err)
	}
	return &out, nil
}

func (r *onboardingRepo) SlugExists(dbc dbctx.Context, slug string) (bool, error) {
	var n int64
	if err := dbc.Or(r.db).Model(&types.ClientOnboarding{}).Where("client_slug = ?", slug).Count(&n).Error; err != nil {
		return false, db.Translate("check onboarding slug", err)
	}
	return n > 0, nil
}
