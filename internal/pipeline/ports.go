package pipeline

import (
	"context"
	"time"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
)

// Generator produces and edits site files.
type Generator interface {
	GenerateSite(ctx context.Context, req sites.GenerationRequest) (sites.Artifact, error)
	EditFiles(ctx context.Context, category string, changes map[string]any, files map[string]string) (map[string]string, error)
}

// RepoHost is the code host surface the pipelines use.
type RepoHost interface {
	Org() string
	EnsureRepo(ctx context.Context, org, name, description string) (sites.RepositoryRef, error)
	PushFiles(ctx context.Context, org, name, branch string, files []sites.FileEntry, message string) (string, error)
	GetFile(ctx context.Context, org, name, path, ref string) (sites.RemoteFile, error)
	UpdateFile(ctx context.Context, org, name, branch string, file sites.RemoteFile, message string) error
}

// DeployPlatform builds and serves sites from their repositories.
type DeployPlatform interface {
	StagingURL(projectName string) string
	EnsureProject(ctx context.Context, name, repo string) (sites.Project, error)
	SetEnvVars(ctx context.Context, projectID string, vars map[string]string) error
	TriggerDeployment(ctx context.Context, project sites.Project, repo, ref string) (sites.Deployment, error)
	DeploymentReader
}

// DeploymentReader is what the poller needs.
type DeploymentReader interface {
	GetDeployment(ctx context.Context, id string) (sites.Deployment, error)
	GetDeploymentLogs(ctx context.Context, id string) ([]string, error)
}

// CMS is the visual editor configuration surface.
type CMS interface {
	CanCreateSpaces() bool
	ConfigurePreview(ctx context.Context, publicKey, privateKey, model, previewURL string) error
	CreateSpace(ctx context.Context, name, projectID string) (sites.CMSSpace, error)
	ValidatePublicKey(ctx context.Context, key string) error
}

// ClientGate admits a slug for generation or returns a validation error
// describing the client's current status.
type ClientGate interface {
	Admit(ctx context.Context, slug string) error
}

// CredentialSource resolves the CMS keys a site is deployed with. A missing
// key set is reported as ok=false, a store failure as err.
type CredentialSource interface {
	Resolve(ctx context.Context, slug string, mode sites.SpaceMode) (creds sites.CMSCredentials, ok bool, err error)
}

// BackupSink archives a generated artifact and returns its location.
type BackupSink interface {
	Store(ctx context.Context, slug string, files []sites.FileEntry, metadata map[string]any) (string, error)
}

// RunRecorder logs one generation outcome. It never fails the run.
type RunRecorder interface {
	Record(ctx context.Context, rec RunRecord)
}

// SlugLock serialises runs per slug.
type SlugLock interface {
	TryLock(ctx context.Context, slug string) (release func(), err error)
}

// RunRecord is the outcome of one generation run.
type RunRecord struct {
	Slug          string
	Industry      string
	Features      []string
	Components    int
	Files         int
	Elapsed       time.Duration
	Success       bool
	Stage         string
	ErrorType     string
	Error         string
	BuildState    string
	BuildLogs     []string
	DeploymentURL string
}
