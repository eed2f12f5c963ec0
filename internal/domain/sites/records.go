package sites

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BackupRecord is an append-only pointer to one archived artifact.
type BackupRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientSlug string         `gorm:"column:client_slug;not null;index:idx_backup_slug_created,priority:1" json:"client_slug"`
	Location   string         `gorm:"column:location;not null" json:"location"`
	ObjectKey  string         `gorm:"column:object_key;not null;uniqueIndex" json:"object_key"`
	SizeBytes  int64          `gorm:"column:size_bytes;not null" json:"size_bytes"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index:idx_backup_slug_created,priority:2" json:"created_at"`
}

func (BackupRecord) TableName() string { return "backups" }

func (b *BackupRecord) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// SiteGeneration is one row per generation run, success or failure.
type SiteGeneration struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientSlug    string         `gorm:"column:client_slug;not null;index" json:"client_slug"`
	Industry      string         `gorm:"column:industry" json:"industry"`
	Features      datatypes.JSON `gorm:"column:features;type:jsonb" json:"features,omitempty"`
	Components    int            `gorm:"column:components;not null;default:0" json:"components"`
	Files         int            `gorm:"column:files;not null;default:0" json:"files"`
	Seconds       float64        `gorm:"column:generation_seconds;not null" json:"generation_seconds"`
	Success       bool           `gorm:"column:success;not null;index" json:"success"`
	Stage         string         `gorm:"column:stage" json:"stage,omitempty"`
	ErrorType     string         `gorm:"column:error_type" json:"error_type,omitempty"`
	Error         string         `gorm:"column:error" json:"error,omitempty"`
	BuildState    string         `gorm:"column:build_state" json:"build_state,omitempty"`
	BuildLogs     string         `gorm:"column:build_logs" json:"build_logs,omitempty"`
	DeploymentURL string         `gorm:"column:deployment_url" json:"deployment_url,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (SiteGeneration) TableName() string { return "site_generations" }

func (g *SiteGeneration) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
