package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type ObjectAttrs struct {
	Key         string
	Size        int64
	ContentType string
	Created     time.Time
}

// ObjectStore is the narrow bucket surface backups need. Put never replaces
// an existing object; it reports an UpstreamConflict instead.
type ObjectStore interface {
	Bucket() string
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	List(ctx context.Context, prefix string) ([]ObjectAttrs, error)
	Delete(ctx context.Context, key string) error
}

type objectStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewObjectStore(ctx context.Context, log *logger.Logger, c Config) (ObjectStore, error) {
	settings, err := c.Resolve()
	if err != nil {
		return nil, err
	}
	if settings.Bucket == "" {
		return nil, fmt.Errorf("missing env var GCS_BACKUP_BUCKET")
	}
	client, err := newStorageClient(ctx, settings, c)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	serviceLog := log.With("service", "ObjectStore")
	serviceLog.Info("Object store ready",
		"mode", settings.Mode,
		"mode_source", settings.Source(),
		"bucket", settings.Bucket,
	)
	return &objectStore{log: serviceLog, client: client, bucket: settings.Bucket}, nil
}

func newStorageClient(ctx context.Context, s Settings, c Config) (*storage.Client, error) {
	if s.Mode == ModeEmulator {
		// The storage client only reads the emulator endpoint from the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", s.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := append(c.ClientOptions(), option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func (s *objectStore) Bucket() string { return s.bucket }

func (s *objectStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := s.client.Bucket(s.bucket).Object(key).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, classify("write object", err)
	}
	if err := w.Close(); err != nil {
		return 0, classify("close object writer "+key, err)
	}
	s.log.Debug("Object written", "key", key, "size_bytes", n)
	return n, nil
}

// List returns the objects under prefix, newest first.
func (s *objectStore) List(ctx context.Context, prefix string) ([]ObjectAttrs, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []ObjectAttrs{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify("list objects", err)
		}
		out = append(out, ObjectAttrs{
			Key:         attrs.Name,
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			Created:     attrs.Created,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

func (s *objectStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return classify("delete object", err)
	}
	return nil
}

func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return apierr.Conflict(apierr.UpstreamGCS, op+": object already exists", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.TimedOut(apierr.UpstreamGCS, op, err)
	}
	if errors.Is(err, storage.ErrBucketNotExist) {
		return apierr.New(apierr.KindUpstreamRejected, apierr.UpstreamGCS, op, err)
	}
	return apierr.Unavailable(apierr.UpstreamGCS, op, err)
}
