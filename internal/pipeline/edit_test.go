package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

const threeFileTargets = `
default: [app/page.tsx]
categories:
  layout: [app/page.tsx, tailwind.config.ts, app/globals.css]
`

func remote(path, content string) sites.RemoteFile {
	return sites.RemoteFile{Path: path, Content: content, SHA: "sha-" + path}
}

func TestEditPartialSuccess(t *testing.T) {
	targets, err := ParseEditTargets([]byte(threeFileTargets))
	if err != nil {
		t.Fatalf("ParseEditTargets: %v", err)
	}
	repo := &fakeRepo{
		files: map[string]sites.RemoteFile{
			"app/page.tsx":       remote("app/page.tsx", "old page"),
			"tailwind.config.ts": remote("tailwind.config.ts", "old tw"),
		},
		fetchErr: map[string]error{"app/globals.css": apierr.Unavailable(apierr.UpstreamGitHub, "get file", nil)},
		stale:    map[string]bool{"tailwind.config.ts": true},
	}
	gen := &fakeGenerator{edits: map[string]string{
		"app/page.tsx":       "new page",
		"tailwind.config.ts": "new tw",
		"app/globals.css":    "ignored",
		"README.md":          "ignored",
	}}

	res, err := NewEditor(logger.Nop(), gen, repo, &fakeDeploy{}, targets).Edit(context.Background(), sites.EditRequest{
		ProjectName: "acme-corp",
		Category:    "layout",
		Changes:     map[string]any{"spacing": "wider"},
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if len(gen.editSeen) != 2 {
		t.Fatalf("generator files: want=2 got=%d", len(gen.editSeen))
	}
	if len(res.Updated) != 1 || res.Updated[0] != "app/page.tsx" {
		t.Fatalf("updated: want=[app/page.tsx] got=%v", res.Updated)
	}
	if len(res.Failed) != 1 || res.Failed[0].Path != "tailwind.config.ts" {
		t.Fatalf("failed: want=[tailwind.config.ts] got=%v", res.Failed)
	}
	if len(res.SkippedFetch) != 1 || res.SkippedFetch[0].Path != "app/globals.css" {
		t.Fatalf("skipped: want=[app/globals.css] got=%v", res.SkippedFetch)
	}
	if !res.Partial {
		t.Fatalf("partial: want=true got=false")
	}
	if res.DeploymentURL != "https://acme-corp.vercel.app" {
		t.Fatalf("staging url: got=%q", res.DeploymentURL)
	}
}

func TestEditAllFetchesFailSkipsGenerator(t *testing.T) {
	targets, _ := ParseEditTargets([]byte(threeFileTargets))
	repo := &fakeRepo{files: map[string]sites.RemoteFile{}}
	gen := &fakeGenerator{}

	_, err := NewEditor(logger.Nop(), gen, repo, &fakeDeploy{}, targets).Edit(context.Background(), sites.EditRequest{
		ProjectName: "acme-corp",
		Category:    "layout",
	})
	if err == nil {
		t.Fatalf("Edit: want error got=nil")
	}
	if gen.calls != 0 {
		t.Fatalf("generator calls: want=0 got=%d", gen.calls)
	}
	if !errors.Is(err, apierr.NotFound) {
		t.Fatalf("kind: want=not_found got=%s", apierr.KindOf(err))
	}
}

func TestEditSkipsUnchangedAndFailsWhenNothingWritten(t *testing.T) {
	targets, _ := ParseEditTargets([]byte(threeFileTargets))
	repo := &fakeRepo{files: map[string]sites.RemoteFile{"app/page.tsx": remote("app/page.tsx", "same")}}
	gen := &fakeGenerator{edits: map[string]string{"app/page.tsx": "same"}}

	res, err := NewEditor(logger.Nop(), gen, repo, &fakeDeploy{}, targets).Edit(context.Background(), sites.EditRequest{
		ProjectName: "acme-corp",
		Category:    "content",
	})
	if err == nil {
		t.Fatalf("Edit: want error got=nil")
	}
	if len(repo.updated) != 0 {
		t.Fatalf("writes: want=0 got=%v", repo.updated)
	}
	if len(res.Unchanged) != 1 {
		t.Fatalf("unchanged: want=1 got=%v", res.Unchanged)
	}
}

func TestEditRejectsUnsanitizedSlug(t *testing.T) {
	targets, _ := ParseEditTargets([]byte(threeFileTargets))
	gen := &fakeGenerator{}
	_, err := NewEditor(logger.Nop(), gen, &fakeRepo{}, &fakeDeploy{}, targets).Edit(context.Background(), sites.EditRequest{
		ProjectName: "Acme Corp",
		Category:    "content",
	})
	if !errors.Is(err, apierr.Validation) {
		t.Fatalf("kind: want=validation_error got=%s", apierr.KindOf(err))
	}
}

func TestEditTargetsDefaultsAndOverride(t *testing.T) {
	targets, err := LoadEditTargets()
	if err != nil {
		t.Fatalf("LoadEditTargets: %v", err)
	}
	if got := targets.For("color_palette"); len(got) != 2 || got[0] != "tailwind.config.ts" {
		t.Fatalf("color_palette: got=%v", got)
	}
	if got := targets.For("seo"); len(got) != 1 || got[0] != "app/layout.tsx" {
		t.Fatalf("seo: got=%v", got)
	}
	if got := targets.For("mystery"); len(got) != 1 || got[0] != "app/page.tsx" {
		t.Fatalf("unknown: want=[app/page.tsx] got=%v", got)
	}

	p := filepath.Join(t.TempDir(), "targets.yaml")
	if err := os.WriteFile(p, []byte("default: [app/layout.tsx]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DARX_EDIT_TARGETS_YAML", p)
	targets, err = LoadEditTargets()
	if err != nil {
		t.Fatalf("LoadEditTargets override: %v", err)
	}
	if got := targets.For("content"); len(got) != 1 || got[0] != "app/layout.tsx" {
		t.Fatalf("override default: got=%v", got)
	}

	if _, err := ParseEditTargets([]byte("categories: {}\n")); err == nil {
		t.Fatalf("empty default: want error got=nil")
	}
}
