package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	siterepo "github.com/yungbote/darx-site-generator/internal/data/repos/sites"
	"github.com/yungbote/darx-site-generator/internal/data/repos/testutil"
	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/gcp"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	created map[string]time.Time
	clock   func() time.Time
}

func newMemStore(clock func() time.Time) *memStore {
	return &memStore{objects: map[string][]byte{}, created: map[string]time.Time{}, clock: clock}
}

func (m *memStore) Bucket() string { return "darx-backups" }

func (m *memStore) Put(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok {
		return 0, apierr.Conflict(apierr.UpstreamGCS, "object "+key+" already exists", nil)
	}
	m.objects[key] = b
	m.created[key] = m.clock()
	return int64(len(b)), nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]gcp.ObjectAttrs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []gcp.ObjectAttrs
	for k, b := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, gcp.ObjectAttrs{Key: k, Size: int64(len(b)), Created: m.created[k]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("no object %s", key)
	}
	delete(m.objects, key)
	return nil
}

func TestBackupStoreWritesZipAndRecord(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)
	store := newMemStore(func() time.Time { return now })
	records := siterepo.NewBackupRepo(db, testutil.Logger(t))
	svc := NewBackupService(testutil.Logger(t), store, records)
	svc.now = func() time.Time { return now }
	slug := testutil.Slug("bk")

	loc, err := svc.Store(ctx, slug, []sites.FileEntry{
		{Path: "app/page.tsx", Content: "page"},
		{Path: "package.json", Content: "{}"},
	}, map[string]any{"industry": "saas"})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	key := "projects/" + slug + "/generation-20260301-123045.zip"
	if loc != "gs://darx-backups/"+key {
		t.Fatalf("location: got=%q", loc)
	}

	zr, err := zip.NewReader(bytes.NewReader(store.objects[key]), int64(len(store.objects[key])))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
		if f.Name == "metadata.json" {
			rc, _ := f.Open()
			var meta map[string]any
			_ = json.NewDecoder(rc).Decode(&meta)
			rc.Close()
			if meta["industry"] != "saas" {
				t.Fatalf("metadata: got=%v", meta)
			}
		}
	}
	if !names["app/page.tsx"] || !names["package.json"] || !names["metadata.json"] {
		t.Fatalf("archive entries: got=%v", names)
	}

	recs, err := records.ListBySlug(dbctx.Context{Ctx: ctx}, slug)
	if err != nil || len(recs) != 1 || recs[0].Location != loc || recs[0].SizeBytes == 0 {
		t.Fatalf("records: got=%v err=%v", recs, err)
	}
}

func TestBackupStoreSameSecondKeepsBothArchives(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)
	store := newMemStore(func() time.Time { return now })
	records := siterepo.NewBackupRepo(db, testutil.Logger(t))
	svc := NewBackupService(testutil.Logger(t), store, records)
	svc.now = func() time.Time { return now }
	slug := testutil.Slug("twice")

	first, err := svc.Store(ctx, slug, []sites.FileEntry{{Path: "a.txt", Content: "first"}}, nil)
	if err != nil {
		t.Fatalf("Store first: %v", err)
	}
	second, err := svc.Store(ctx, slug, []sites.FileEntry{{Path: "a.txt", Content: "second"}}, nil)
	if err != nil {
		t.Fatalf("Store second: %v", err)
	}
	wantSecond := "gs://darx-backups/projects/" + slug + "/generation-20260301-123045-2.zip"
	if first == second || second != wantSecond {
		t.Fatalf("locations: first=%q second=%q want second=%q", first, second, wantSecond)
	}
	if len(store.objects) != 2 {
		t.Fatalf("objects: want=2 got=%d", len(store.objects))
	}
	recs, err := records.ListBySlug(dbctx.Context{Ctx: ctx}, slug)
	if err != nil || len(recs) != 2 {
		t.Fatalf("records: want=2 got=%v err=%v", recs, err)
	}
}

func TestBackupStoreGivesUpAfterBoundedAttempts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)
	store := newMemStore(func() time.Time { return now })
	svc := NewBackupService(testutil.Logger(t), store, nil)
	svc.now = func() time.Time { return now }
	slug := testutil.Slug("full")

	for i := 0; i < backupAttempts; i++ {
		if _, err := svc.Store(ctx, slug, []sites.FileEntry{{Path: "a.txt", Content: "a"}}, nil); err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
	}
	_, err := svc.Store(ctx, slug, []sites.FileEntry{{Path: "a.txt", Content: "a"}}, nil)
	if !errors.Is(err, apierr.UpstreamConflict) {
		t.Fatalf("Store past limit: want UpstreamConflict got=%v", err)
	}
}

func TestBackupPruneAlwaysKeepsNewest(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(func() time.Time { return now })
	svc := NewBackupService(testutil.Logger(t), store, siterepo.NewBackupRepo(db, testutil.Logger(t)))
	svc.now = func() time.Time { return now }
	slug := testutil.Slug("prune")

	for i := 0; i < 4; i++ {
		if _, err := svc.Store(ctx, slug, []sites.FileEntry{{Path: "a.txt", Content: "a"}}, nil); err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
		now = now.Add(time.Minute)
	}
	newest := backupKey(slug, now.Add(-time.Minute), 0)

	deleted, err := svc.Prune(ctx, slug, 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted: want=2 got=%v", deleted)
	}

	deleted, err = svc.Prune(ctx, slug, 0)
	if err != nil {
		t.Fatalf("Prune(0): %v", err)
	}
	if len(deleted) != 1 {
		t.Fatalf("Prune(0) deleted: want=1 got=%v", deleted)
	}
	left, _ := svc.List(ctx, slug)
	if len(left) != 1 || left[0].Key != newest {
		t.Fatalf("remaining: want [%s] got=%v", newest, left)
	}
}
