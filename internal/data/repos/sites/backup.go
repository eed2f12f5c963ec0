package sites

import (
	"gorm.io/gorm"

	"github.com/yungbote/darx-site-generator/internal/data/db"
	types "github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type BackupRepo interface {
	Create(dbc dbctx.Context, b *types.BackupRecord) error
	// ListBySlug returns the newest records first.
	ListBySlug(dbc dbctx.Context, slug string) ([]*types.BackupRecord, error)
	DeleteByObjectKeys(dbc dbctx.Context, keys []string) error
}

type backupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBackupRepo(db *gorm.DB, baseLog *logger.Logger) BackupRepo {
	return &backupRepo{db: db, log: baseLog.With("repo", "BackupRepo")}
}

func (r *backupRepo) Create(dbc dbctx.Context, b *types.BackupRecord) error {
	if b == nil {
		return nil
	}
	if err := dbc.Or(r.db).Create(b).Error; err != nil {
		return db.Translate("create backup record", err)
	}
	return nil
}

func (r *backupRepo) ListBySlug(dbc dbctx.Context, slug string) ([]*types.BackupRecord, error) {
	var results []*types.BackupRecord
	if err := dbc.Or(r.db).
		Where("client_slug = ?", slug).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, db.Translate("list backups", err)
	}
	return results, nil
}

func (r *backupRepo) DeleteByObjectKeys(dbc dbctx.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := dbc.Or(r.db).
		Where("object_key IN ?", keys).
		Delete(&types.BackupRecord{}).Error; err != nil {
		return db.Translate("delete backup records", err)
	}
	return nil
}
