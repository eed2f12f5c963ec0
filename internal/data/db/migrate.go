package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/domain/sites"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Clients + onboarding
		// =========================
		&clients.Client{},
		&clients.ClientOnboarding{},
		&clients.OnboardingToken{},

		// =========================
		// Generation history
		// =========================
		&sites.SiteGeneration{},
		&sites.BackupRecord{},
	)
}
