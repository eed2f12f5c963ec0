package clients

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/darx-site-generator/internal/data/db"
	types "github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type TokenRepo interface {
	Create(dbc dbctx.Context, t *types.OnboardingToken) error
	// Get returns nil, nil for an unknown token.
	Get(dbc dbctx.Context, token string) (*types.OnboardingToken, error)
	// Consume marks token used iff it is still unused and unexpired at now.
	// It reports whether this call was the one that consumed it.
	Consume(dbc dbctx.Context, token string, now time.Time) (bool, error)
	// DeleteStale removes used or expired tokens.
	DeleteStale(dbc dbctx.Context, now time.Time) (int64, error)
}

type tokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTokenRepo(db *gorm.DB, baseLog *logger.Logger) TokenRepo {
	return &tokenRepo{db: db, log: baseLog.With("repo", "OnboardingTokenRepo")}
}

func (r *tokenRepo) Create(dbc dbctx.Context, t *types.OnboardingToken) error {
	if t == nil {
		return nil
	}
	if err := dbc.Or(r.db).Create(t).Error; err != nil {
		return db.Translate("create onboarding token", err)
	}
	return nil
}

func (r *tokenRepo) Get(dbc dbctx.Context, token string) (*types.OnboardingToken, error) {
	var out types.OnboardingToken
	err := dbc.Or(r.db).Where("token = ?", token).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Translate("get onboarding token", err)
	}
	return &out, nil
}

func (r *tokenRepo) Consume(dbc dbctx.Context, token string, now time.Time) (bool, error) {
	res := dbc.Or(r.db).
		Model(&types.OnboardingToken{}).
		Where("token = ? AND used = ? AND expires_at > ?", token, false, now).
		Updates(map[string]any{"used": true, "used_at": now})
	if res.Error != nil {
		return false, db.Translate("consume onboarding token", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *tokenRepo) DeleteStale(dbc dbctx.Context, now time.Time) (int64, error) {
	res := dbc.Or(r.db).
		Where("used = ? OR expires_at <= ?", true, now).
		Delete(&types.OnboardingToken{})
	if res.Error != nil {
		return 0, db.Translate("delete stale onboarding tokens", res.Error)
	}
	return res.RowsAffected, nil
}
