package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/observability"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

const editBranch = "main"

// FileFailure is one path that could not be fetched or written.
type FileFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// EditResult reports what an edit changed. Partial is set when some writes
// failed but at least one succeeded.
type EditResult struct {
	Updated       []string      `json:"files_updated"`
	Failed        []FileFailure `json:"files_failed"`
	SkippedFetch  []FileFailure `json:"skipped_fetch,omitempty"`
	Unchanged     []string      `json:"unchanged,omitempty"`
	DeploymentURL string        `json:"staging_url"`
	Category      string        `json:"edit_type"`
	Elapsed       time.Duration `json:"-"`
	Partial       bool          `json:"partial"`
}

type Editor struct {
	log     *logger.Logger
	gen     Generator
	repo    RepoHost
	deploy  DeployPlatform
	targets *EditTargets
}

func NewEditor(log *logger.Logger, gen Generator, repo RepoHost, deploy DeployPlatform, targets *EditTargets) *Editor {
	return &Editor{
		log:     log.With("service", "EditPipeline"),
		gen:     gen,
		repo:    repo,
		deploy:  deploy,
		targets: targets,
	}
}

// Edit applies a categorised change to an existing site. Writes go back with
// the sha read at fetch time; a stale sha fails that file only.
func (e *Editor) Edit(ctx context.Context, req sites.EditRequest) (EditResult, error) {
	start := time.Now()
	if err := validateSlug(req.ProjectName); err != nil {
		return EditResult{}, err
	}
	if req.Category == "" {
		return EditResult{}, apierr.Validationf("edit_type is required")
	}
	log := e.log.With("slug", req.ProjectName, "edit_type", req.Category)
	if !e.targets.Known(req.Category) {
		log.Info("Unknown edit category, using default targets")
	}

	res := EditResult{Category: req.Category, DeploymentURL: e.deploy.StagingURL(req.ProjectName)}
	fetched, skipped, firstErr := e.fetch(ctx, req.ProjectName, e.targets.For(req.Category))
	res.SkippedFetch = skipped
	if len(fetched) == 0 {
		e.observe(req.Category, "fetch_failed", 0, len(skipped))
		return res, apierr.New(apierr.KindOf(firstErr), apierr.UpstreamOf(firstErr), "no target files could be fetched", firstErr).
			WithDetail("skipped_fetch", skipped)
	}

	current := make(map[string]string, len(fetched))
	for _, f := range fetched {
		current[f.Path] = f.Content
	}
	edits, err := e.gen.EditFiles(ctx, req.Category, req.Changes, current)
	if err != nil {
		e.observe(req.Category, "generate_failed", 0, 0)
		return res, err
	}
	for p := range edits {
		if _, ok := current[p]; !ok {
			log.Warn("Ignoring edit outside target files", "path", p)
		}
	}

	message := fmt.Sprintf("Edit: %s\n\nUpdated via DARX AI", req.Category)
	var firstWriteErr error
	for _, f := range fetched {
		next, ok := edits[f.Path]
		if !ok || next == f.Content {
			res.Unchanged = append(res.Unchanged, f.Path)
			continue
		}
		f.Content = next
		if err := e.repo.UpdateFile(ctx, e.repo.Org(), req.ProjectName, editBranch, f, message); err != nil {
			log.Warn("File update failed", "path", f.Path, "error", err)
			res.Failed = append(res.Failed, FileFailure{Path: f.Path, Reason: err.Error()})
			if firstWriteErr == nil {
				firstWriteErr = err
			}
			continue
		}
		res.Updated = append(res.Updated, f.Path)
	}
	res.Elapsed = time.Since(start)

	if len(res.Updated) == 0 {
		e.observe(req.Category, "failed", 0, len(res.Failed))
		if firstWriteErr != nil {
			return res, apierr.New(apierr.KindOf(firstWriteErr), apierr.UpstreamOf(firstWriteErr), "no files were updated", firstWriteErr).
				WithDetail("files_failed", res.Failed)
		}
		return res, apierr.Rejected(apierr.UpstreamLLM, 0, "edit produced no changes to the target files", nil).
			WithDetail("unchanged", res.Unchanged)
	}
	res.Partial = len(res.Failed) > 0
	outcome := "success"
	if res.Partial {
		outcome = "partial"
	}
	e.observe(req.Category, outcome, len(res.Updated), len(res.Failed))
	log.Info("Edit applied", "updated", res.Updated, "failed", len(res.Failed), "elapsed", res.Elapsed)
	return res, nil
}

// fetch reads paths in parallel. Failed reads are skipped; results keep
// path order.
func (e *Editor) fetch(ctx context.Context, slug string, paths []string) ([]sites.RemoteFile, []FileFailure, error) {
	got := make([]*sites.RemoteFile, len(paths))
	var (
		mu       sync.Mutex
		skipped  []FileFailure
		firstErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			f, err := e.repo.GetFile(gctx, e.repo.Org(), slug, p, editBranch)
			if err != nil {
				e.log.Warn("Skipping file that could not be fetched", "slug", slug, "path", p, "error", err)
				mu.Lock()
				skipped = append(skipped, FileFailure{Path: p, Reason: err.Error()})
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			got[i] = &f
			return nil
		})
	}
	_ = g.Wait()

	out := make([]sites.RemoteFile, 0, len(paths))
	for _, f := range got {
		if f != nil {
			out = append(out, *f)
		}
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Path < skipped[j].Path })
	return out, skipped, firstErr
}

func (e *Editor) observe(category, outcome string, updated, failed int) {
	if m := observability.Current(); m != nil {
		m.ObserveEdit(category, outcome, updated, failed)
	}
}
