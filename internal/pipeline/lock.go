package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
	"github.com/yungbote/darx-site-generator/internal/platform/redisx"
)

// errInProgress is returned when another run holds the slug.
func errInProgress(slug string) error {
	return apierr.Conflict(apierr.UpstreamNone, "generation already in progress", nil).
		WithCode("generation_in_progress").
		WithDetail("project_name", slug)
}

// LocalLock is an in-process try-lock per slug.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: map[string]struct{}{}}
}

func (l *LocalLock) TryLock(_ context.Context, slug string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[slug]; busy {
		return nil, errInProgress(slug)
	}
	l.held[slug] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, slug)
			l.mu.Unlock()
		})
	}, nil
}

// DistributedLock takes the in-process lock first, then a Redis lock so
// replicas do not race on the same slug. With no Redis locker it behaves as
// the local lock.
type DistributedLock struct {
	log    *logger.Logger
	local  *LocalLock
	remote *redisx.Locker
	ttl    time.Duration
}

func NewDistributedLock(log *logger.Logger, remote *redisx.Locker, ttl time.Duration) *DistributedLock {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DistributedLock{
		log:    log.With("service", "SlugLock"),
		local:  NewLocalLock(),
		remote: remote,
		ttl:    ttl,
	}
}

func (l *DistributedLock) TryLock(ctx context.Context, slug string) (func(), error) {
	releaseLocal, err := l.local.TryLock(ctx, slug)
	if err != nil {
		return nil, err
	}
	if l.remote == nil {
		return releaseLocal, nil
	}
	releaseRemote, ok, err := l.remote.TryLock(ctx, "generate:"+slug, l.ttl)
	if err != nil {
		releaseLocal()
		return nil, err
	}
	if !ok {
		releaseLocal()
		return nil, errInProgress(slug)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseRemote(ctx); err != nil {
			l.log.Warn("Slug lock release failed", "slug", slug, "error", err)
		}
		releaseLocal()
	}, nil
}
