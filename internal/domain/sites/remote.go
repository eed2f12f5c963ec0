package sites

import "strings"

// RepositoryRef identifies a repository on the code host.
type RepositoryRef struct {
	ID            int64  `json:"id"`
	Org           string `json:"org"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	DefaultBranch string `json:"default_branch"`
	CommitSHA     string `json:"commit_sha,omitempty"`
	// Existed is true when creation found the repository already there.
	Existed bool   `json:"existed"`
	Note    string `json:"note,omitempty"`
}

func (r RepositoryRef) FullName() string { return r.Org + "/" + r.Name }

// RemoteFile is a file read from the code host with its version marker.
type RemoteFile struct {
	Path    string
	Content string
	SHA     string
}

type DeployState string

const (
	DeployPending  DeployState = "PENDING"
	DeployBuilding DeployState = "BUILDING"
	DeployReady    DeployState = "READY"
	DeployError    DeployState = "ERROR"
	DeployCanceled DeployState = "CANCELED"
	DeployTimeout  DeployState = "TIMEOUT"
)

// Terminal reports whether polling must stop at s.
func (s DeployState) Terminal() bool {
	switch s {
	case DeployReady, DeployError, DeployCanceled, DeployTimeout:
		return true
	default:
		return false
	}
}

// ParseDeployState maps the platform's readyState onto DeployState.
func ParseDeployState(raw string) DeployState {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "QUEUED", "INITIALIZING", "PENDING", "":
		return DeployPending
	case "BUILDING":
		return DeployBuilding
	case "READY":
		return DeployReady
	case "ERROR":
		return DeployError
	case "CANCELED", "CANCELLED":
		return DeployCanceled
	default:
		return DeployPending
	}
}

// Project is a deploy platform project linked to a repository.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// RepoID is the linked repository's numeric id, needed to deploy from git.
	RepoID int64 `json:"repo_id,omitempty"`
}

// Deployment is one build on the deploy platform, as last read.
type Deployment struct {
	ID    string      `json:"id"`
	State DeployState `json:"state"`
	URL   string      `json:"url,omitempty"`
}

// SpaceMode is the CMS space topology a site is wired for.
type SpaceMode string

const (
	SpaceShared    SpaceMode = "SHARED"
	SpaceDedicated SpaceMode = "DEDICATED"
)

// PreviewModel is the CMS model whose preview URL points at the site.
func (m SpaceMode) PreviewModel() string {
	if m == SpaceShared {
		return "client-page"
	}
	return "page"
}

// CMSCredentials are the keys a site is deployed with.
type CMSCredentials struct {
	PublicKey  string
	PrivateKey string
	SpaceID    string
	Source     string
}

func (c CMSCredentials) Complete() bool {
	return strings.TrimSpace(c.PublicKey) != "" && strings.TrimSpace(c.PrivateKey) != ""
}

// CMSSpace is the CMS space a site ends up attached to.
type CMSSpace struct {
	ID        string `json:"id"`
	PublicKey string `json:"-"`
	URL       string `json:"url,omitempty"`
}
