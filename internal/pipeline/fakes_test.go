package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// fakeDeploy replays states; the last one repeats.
type fakeDeploy struct {
	mu        sync.Mutex
	states    []sites.DeployState
	readErr   error
	polls     int
	logs      []string
	logErr    error
	logCalls  int
	envVars   map[string]string
	triggered int
	ref       string
}

func (d *fakeDeploy) StagingURL(name string) string { return "https://" + name + ".vercel.app" }

func (d *fakeDeploy) EnsureProject(_ context.Context, name, repo string) (sites.Project, error) {
	return sites.Project{ID: "prj_" + name, Name: name}, nil
}

func (d *fakeDeploy) SetEnvVars(_ context.Context, _ string, vars map[string]string) error {
	d.envVars = vars
	return nil
}

func (d *fakeDeploy) TriggerDeployment(_ context.Context, p sites.Project, repo, ref string) (sites.Deployment, error) {
	d.triggered++
	d.ref = ref
	return sites.Deployment{ID: "dpl_1", State: sites.DeployPending}, nil
}

func (d *fakeDeploy) GetDeployment(_ context.Context, id string) (sites.Deployment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.polls++
	if d.readErr != nil {
		return sites.Deployment{}, d.readErr
	}
	i := d.polls - 1
	if i >= len(d.states) {
		i = len(d.states) - 1
	}
	st := d.states[i]
	dep := sites.Deployment{ID: id, State: st}
	if st == sites.DeployReady {
		dep.URL = "https://acme-corp-abc.vercel.app"
	}
	return dep, nil
}

func (d *fakeDeploy) GetDeploymentLogs(context.Context, string) ([]string, error) {
	d.logCalls++
	return d.logs, d.logErr
}

type fakeRepo struct {
	mu       sync.Mutex
	files    map[string]sites.RemoteFile
	fetchErr map[string]error
	stale    map[string]bool
	ensured  int
	pushed   []sites.FileEntry
	branch   string
	updated  []string
	pushErr  error
	// existing simulates a repo that was already there.
	existing      bool
	defaultBranch string
}

func (r *fakeRepo) Org() string { return "darx-sites" }

func (r *fakeRepo) EnsureRepo(_ context.Context, org, name, _ string) (sites.RepositoryRef, error) {
	r.ensured++
	branch := r.defaultBranch
	if branch == "" {
		branch = "main"
	}
	return sites.RepositoryRef{ID: 42, Org: org, Name: name, URL: "https://github.com/" + org + "/" + name, DefaultBranch: branch, Existed: r.existing}, nil
}

func (r *fakeRepo) PushFiles(_ context.Context, _, _, branch string, files []sites.FileEntry, _ string) (string, error) {
	if r.pushErr != nil {
		return "", r.pushErr
	}
	r.pushed = files
	r.branch = branch
	return "abc123", nil
}

func (r *fakeRepo) GetFile(_ context.Context, _, _, path, _ string) (sites.RemoteFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fetchErr[path]; err != nil {
		return sites.RemoteFile{}, err
	}
	f, ok := r.files[path]
	if !ok {
		return sites.RemoteFile{}, apierr.NotFoundf(apierr.UpstreamGitHub, "%s not found", path)
	}
	return f, nil
}

func (r *fakeRepo) UpdateFile(_ context.Context, _, _, _ string, f sites.RemoteFile, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stale[f.Path] {
		return apierr.Conflict(apierr.UpstreamGitHub, "update "+f.Path+": sha does not match", nil)
	}
	r.updated = append(r.updated, f.Path)
	return nil
}

type fakeGenerator struct {
	artifact sites.Artifact
	err      error
	edits    map[string]string
	calls    int
	editSeen map[string]string
}

func (g *fakeGenerator) GenerateSite(context.Context, sites.GenerationRequest) (sites.Artifact, error) {
	g.calls++
	return g.artifact, g.err
}

func (g *fakeGenerator) EditFiles(_ context.Context, _ string, _ map[string]any, files map[string]string) (map[string]string, error) {
	g.calls++
	g.editSeen = files
	return g.edits, g.err
}

type fakeCMS struct {
	previewErr error
	previews   int
	spaces     int
	canCreate  bool
}

func (c *fakeCMS) CanCreateSpaces() bool { return c.canCreate }

func (c *fakeCMS) ConfigurePreview(context.Context, string, string, string, string) error {
	c.previews++
	return c.previewErr
}

func (c *fakeCMS) CreateSpace(_ context.Context, name, _ string) (sites.CMSSpace, error) {
	c.spaces++
	return sites.CMSSpace{ID: "space-" + name, URL: "https://builder.io/spaces/x"}, nil
}

func (c *fakeCMS) ValidatePublicKey(context.Context, string) error { return nil }

type fakeGate struct {
	err   error
	calls int
}

func (g *fakeGate) Admit(context.Context, string) error {
	g.calls++
	return g.err
}

type fakeCreds struct {
	creds sites.CMSCredentials
	ok    bool
	err   error
}

func (c *fakeCreds) Resolve(context.Context, string, sites.SpaceMode) (sites.CMSCredentials, bool, error) {
	return c.creds, c.ok, c.err
}

type fakeBackups struct {
	err    error
	stored int
}

func (b *fakeBackups) Store(_ context.Context, slug string, _ []sites.FileEntry, _ map[string]any) (string, error) {
	b.stored++
	if b.err != nil {
		return "", b.err
	}
	return fmt.Sprintf("gs://backups/projects/%s/generation.zip", slug), nil
}

type fakeRecorder struct {
	records []RunRecord
	ctxErrs []error
}

func (r *fakeRecorder) Record(ctx context.Context, rec RunRecord) {
	r.records = append(r.records, rec)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
}

func completeArtifact() sites.Artifact {
	files := []sites.FileEntry{
		{Path: "package.json", Content: "{}"},
		{Path: "vercel.json", Content: "{}"},
		{Path: "app/layout.tsx", Content: "l"},
		{Path: "app/page.tsx", Content: "p"},
		{Path: "components/Hero.tsx", Content: "h"},
	}
	return sites.Artifact{Files: files, Components: sites.ComponentNames(files)}
}
