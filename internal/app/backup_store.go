package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/darx-site-generator/internal/platform/gcp"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

var newObjectStore = gcp.NewObjectStore

// codeConnectFailed covers client construction failures after the settings
// resolved cleanly.
const codeConnectFailed gcp.ConfigErrorCode = "connect_failed"

// BackupStoreError reports why the backup store could not be opened at boot.
type BackupStoreError struct {
	Code     gcp.ConfigErrorCode
	Settings gcp.Settings
	Cause    error
}

func (e *BackupStoreError) Error() string {
	return fmt.Sprintf("backup store unavailable (code=%s mode=%q bucket=%q): %v", e.Code, e.Settings.Mode, e.Settings.Bucket, e.Cause)
}

func (e *BackupStoreError) Unwrap() error { return e.Cause }

// resolveBackupStore returns nil, nil when no backup bucket is configured;
// generation then runs without archives.
func resolveBackupStore(ctx context.Context, log *logger.Logger, cfg gcp.Config) (gcp.ObjectStore, error) {
	if strings.TrimSpace(cfg.BackupBucket) == "" {
		log.Warn("GCS_BACKUP_BUCKET not set; backups disabled")
		return nil, nil
	}
	settings, err := cfg.Resolve()
	if err == nil {
		var store gcp.ObjectStore
		if store, err = newObjectStore(ctx, log, cfg); err == nil {
			return store, nil
		}
	}

	out := &BackupStoreError{Code: codeConnectFailed, Settings: settings, Cause: err}
	var cfgErr *gcp.ConfigError
	if errors.As(err, &cfgErr) {
		out.Code = cfgErr.Code
	}
	log.Error("Backup store bootstrap failed",
		"code", out.Code,
		"mode", settings.Mode,
		"emulator_host", settings.EmulatorHost,
		"error", err,
	)
	return nil, out
}
