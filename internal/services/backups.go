package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	siterepo "github.com/yungbote/darx-site-generator/internal/data/repos/sites"
	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/gcp"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

const backupPrefix = "projects/"

// BackupService archives generated sites to the object store. Records in
// the backups table mirror the objects; the store is the source of truth
// for pruning.
type BackupService struct {
	log     *logger.Logger
	store   gcp.ObjectStore
	records siterepo.BackupRepo
	now     func() time.Time
}

func NewBackupService(baseLog *logger.Logger, store gcp.ObjectStore, records siterepo.BackupRepo) *BackupService {
	return &BackupService{
		log:     baseLog.With("service", "BackupService"),
		store:   store,
		records: records,
		now:     time.Now,
	}
}

// backupAttempts bounds how many same-second archives of one slug get a
// numbered key before Store gives up.
const backupAttempts = 5

// backupKey names an archive. Archives taken in the same second as an
// existing one get a -2, -3, ... suffix.
func backupKey(slug string, at time.Time, attempt int) string {
	stamp := at.UTC().Format("20060102-150405")
	if attempt > 0 {
		stamp = fmt.Sprintf("%s-%d", stamp, attempt+1)
	}
	return fmt.Sprintf("%s%s/generation-%s.zip", backupPrefix, slug, stamp)
}

// Store zips files plus metadata.json and uploads the archive.
func (s *BackupService) Store(ctx context.Context, slug string, files []sites.FileEntry, metadata map[string]any) (string, error) {
	archive, err := buildArchive(files, metadata)
	if err != nil {
		return "", apierr.New(apierr.KindInternal, apierr.UpstreamGCS, "build backup archive", err)
	}
	now := s.now()
	var (
		key  string
		size int64
	)
	for attempt := 0; ; attempt++ {
		key = backupKey(slug, now, attempt)
		size, err = s.store.Put(ctx, key, "application/zip", bytes.NewReader(archive))
		if err == nil {
			break
		}
		if !errors.Is(err, apierr.UpstreamConflict) || attempt+1 >= backupAttempts {
			return "", err
		}
	}
	location := fmt.Sprintf("gs://%s/%s", s.store.Bucket(), key)

	meta, _ := json.Marshal(metadata)
	rec := &sites.BackupRecord{
		ClientSlug: slug,
		Location:   location,
		ObjectKey:  key,
		SizeBytes:  size,
		Metadata:   datatypes.JSON(meta),
		CreatedAt:  now.UTC(),
	}
	if s.records != nil {
		if err := s.records.Create(dbctx.Context{Ctx: ctx}, rec); err != nil {
			s.log.Warn("Backup uploaded but not recorded", "slug", slug, "location", location, "error", err)
		}
	}
	s.log.Info("Backup stored", "slug", slug, "location", location, "size_bytes", size, "files", len(files))
	return location, nil
}

func buildArchive(files []sites.FileEntry, metadata map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Path, Method: zip.Deflate})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(f.Content)); err != nil {
			return nil, err
		}
	}
	meta, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, err
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "metadata.json", Method: zip.Deflate})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(meta); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BackupObject is one archive as listed from the store.
type BackupObject struct {
	Key       string    `json:"key"`
	Location  string    `json:"location"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the archives for slug, newest first.
func (s *BackupService) List(ctx context.Context, slug string) ([]BackupObject, error) {
	attrs, err := s.store.List(ctx, backupPrefix+slug+"/")
	if err != nil {
		return nil, err
	}
	out := make([]BackupObject, 0, len(attrs))
	for _, a := range attrs {
		if !strings.HasSuffix(a.Key, ".zip") {
			continue
		}
		out = append(out, BackupObject{
			Key:       a.Key,
			Location:  fmt.Sprintf("gs://%s/%s", s.store.Bucket(), a.Key),
			SizeBytes: a.Size,
			CreatedAt: a.Created,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key > out[j].Key
	})
	return out, nil
}

// Prune deletes all but the newest keep archives. keep is at least 1 so
// the latest backup always survives. It returns the deleted keys.
func (s *BackupService) Prune(ctx context.Context, slug string, keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	all, err := s.List(ctx, slug)
	if err != nil {
		return nil, err
	}
	if len(all) <= keep {
		return nil, nil
	}
	var deleted []string
	var firstErr error
	for _, b := range all[keep:] {
		if err := s.store.Delete(ctx, b.Key); err != nil {
			s.log.Warn("Backup delete failed", "slug", slug, "key", b.Key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted = append(deleted, b.Key)
	}
	if s.records != nil && len(deleted) > 0 {
		if err := s.records.DeleteByObjectKeys(dbctx.Context{Ctx: ctx}, deleted); err != nil {
			s.log.Warn("Backup records not pruned", "slug", slug, "error", err)
		}
	}
	s.log.Info("Backups pruned", "slug", slug, "kept", keep, "deleted", len(deleted))
	return deleted, firstErr
}
