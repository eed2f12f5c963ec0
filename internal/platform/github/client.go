package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/httpx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type Config struct {
	AppID          string `env:"GITHUB_APP_ID"`
	PrivateKey     string `env:"GITHUB_APP_PRIVATE_KEY"`
	InstallationID string `env:"GITHUB_APP_INSTALLATION_ID"`
	// Token skips App authentication; for local runs against a personal token.
	Token        string        `env:"GITHUB_TOKEN"`
	Org          string        `env:"GITHUB_ORG" envDefault:"darx-sites"`
	BaseURL      string        `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	PrivateRepos bool          `env:"GITHUB_PRIVATE_REPOS"`
	Timeout      time.Duration `env:"GITHUB_TIMEOUT" envDefault:"30s"`
}

// Client talks to the GitHub REST API as an App installation.
type Client struct {
	log        *logger.Logger
	baseURL    string
	org        string
	private    bool
	timeout    time.Duration
	httpClient *http.Client
	tokens     *tokenSource
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	ts, err := newTokenSource(cfg)
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httpx.DefaultTimeout
	}
	c := &Client{
		log:        log.With("service", "GitHubClient"),
		baseURL:    baseURL,
		org:        strings.TrimSpace(cfg.Org),
		private:    cfg.PrivateRepos,
		timeout:    timeout,
		httpClient: httpx.NewClient(timeout),
		tokens:     ts,
	}
	ts.mint = c.mintInstallationToken
	return c, nil
}

// Org is the organization repositories are created under.
func (c *Client) Org() string { return c.org }

type repoPayload struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

func (r repoPayload) ref(org string) sites.RepositoryRef {
	return sites.RepositoryRef{
		ID:            r.ID,
		Org:           org,
		Name:          r.Name,
		URL:           r.HTMLURL,
		DefaultBranch: r.DefaultBranch,
	}
}

// EnsureRepo creates org/name. When the name is taken it returns the existing
// repository with Existed set instead of failing.
func (c *Client) EnsureRepo(ctx context.Context, org, name, description string) (sites.RepositoryRef, error) {
	body := map[string]any{
		"name":         name,
		"description":  description,
		"private":      c.private,
		"auto_init":    true,
		"has_issues":   true,
		"has_wiki":     false,
		"has_projects": true,
	}
	var created repoPayload
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/orgs/%s/repos", url.PathEscape(org)), body, &created)
	if err == nil {
		c.log.Info("Repository created", "repo", org+"/"+name)
		return created.ref(org), nil
	}
	if !isAlreadyExists(err) {
		return sites.RepositoryRef{}, err
	}

	existing, getErr := c.GetRepo(ctx, org, name)
	if getErr != nil {
		return sites.RepositoryRef{}, getErr
	}
	existing.Existed = true
	existing.Note = "Repository already existed"
	c.log.Info("Repository already existed; reusing", "repo", org+"/"+name)
	return existing, nil
}

func isAlreadyExists(err error) bool {
	status := httpx.StatusOf(err)
	return (status == http.StatusUnprocessableEntity || status == http.StatusConflict) && httpx.AlreadyExists(err)
}

func (c *Client) GetRepo(ctx context.Context, org, name string) (sites.RepositoryRef, error) {
	var repo repoPayload
	if err := c.do(ctx, http.MethodGet, repoPath(org, name, ""), nil, &repo); err != nil {
		return sites.RepositoryRef{}, err
	}
	return repo.ref(org), nil
}

// DeleteRepo removes org/name. A missing repository counts as deleted.
func (c *Client) DeleteRepo(ctx context.Context, org, name string) error {
	err := c.do(ctx, http.MethodDelete, repoPath(org, name, ""), nil, nil)
	if err != nil && apierr.KindOf(err) == apierr.KindNotFound {
		return nil
	}
	return err
}

type gitRef struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type shaOnly struct {
	SHA string `json:"sha"`
}

type treeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// PushFiles commits files onto branch as a single commit. Blobs, tree and
// commit are created first; the branch ref moves only at the end, so a failure
// part way leaves the branch untouched.
func (c *Client) PushFiles(ctx context.Context, org, name, branch string, files []sites.FileEntry, message string) (string, error) {
	if len(files) == 0 {
		return "", apierr.Validationf("no files to push")
	}
	if branch == "" {
		branch = "main"
	}
	baseSHA, err := c.branchHead(ctx, org, name, branch)
	if err != nil {
		return "", err
	}

	var parent struct {
		Tree shaOnly `json:"tree"`
	}
	if err := c.do(ctx, http.MethodGet, repoPath(org, name, "/git/commits/"+baseSHA), nil, &parent); err != nil {
		return "", err
	}

	entries := make([]treeEntry, 0, len(files))
	for _, f := range files {
		var blob shaOnly
		body := map[string]string{
			"content":  base64.StdEncoding.EncodeToString([]byte(f.Content)),
			"encoding": "base64",
		}
		if err := c.do(ctx, http.MethodPost, repoPath(org, name, "/git/blobs"), body, &blob); err != nil {
			return "", err
		}
		entries = append(entries, treeEntry{Path: f.Path, Mode: "100644", Type: "blob", SHA: blob.SHA})
	}

	var tree shaOnly
	if err := c.do(ctx, http.MethodPost, repoPath(org, name, "/git/trees"), map[string]any{
		"base_tree": parent.Tree.SHA,
		"tree":      entries,
	}, &tree); err != nil {
		return "", err
	}

	var commit shaOnly
	if err := c.do(ctx, http.MethodPost, repoPath(org, name, "/git/commits"), map[string]any{
		"message": message,
		"tree":    tree.SHA,
		"parents": []string{baseSHA},
	}, &commit); err != nil {
		return "", err
	}

	if err := c.do(ctx, http.MethodPatch, repoPath(org, name, "/git/refs/heads/"+branch), map[string]any{
		"sha":   commit.SHA,
		"force": false,
	}, nil); err != nil {
		return "", err
	}
	c.log.Info("Files pushed", "repo", org+"/"+name, "branch", branch, "files", len(files), "commit", commit.SHA)
	return commit.SHA, nil
}

// branchHead returns the head commit of branch, creating the branch from the
// default branch when it does not exist yet.
func (c *Client) branchHead(ctx context.Context, org, name, branch string) (string, error) {
	var ref gitRef
	err := c.do(ctx, http.MethodGet, repoPath(org, name, "/git/ref/heads/"+branch), nil, &ref)
	if err == nil {
		return ref.Object.SHA, nil
	}
	if apierr.KindOf(err) != apierr.KindNotFound {
		return "", err
	}

	repo, err := c.GetRepo(ctx, org, name)
	if err != nil {
		return "", err
	}
	if err := c.do(ctx, http.MethodGet, repoPath(org, name, "/git/ref/heads/"+repo.DefaultBranch), nil, &ref); err != nil {
		return "", err
	}
	base := ref.Object.SHA
	if err := c.do(ctx, http.MethodPost, repoPath(org, name, "/git/refs"), map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": base,
	}, nil); err != nil {
		return "", err
	}
	return base, nil
}

type contentPayload struct {
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// GetFile reads one file with its blob sha, the version marker UpdateFile needs.
func (c *Client) GetFile(ctx context.Context, org, name, path, ref string) (sites.RemoteFile, error) {
	p := repoPath(org, name, "/contents/"+path)
	if ref != "" {
		p += "?ref=" + url.QueryEscape(ref)
	}
	var out contentPayload
	if err := c.do(ctx, http.MethodGet, p, nil, &out); err != nil {
		return sites.RemoteFile{}, err
	}
	content := out.Content
	if out.Encoding == "base64" {
		raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.Content, "\n", ""))
		if err != nil {
			return sites.RemoteFile{}, apierr.Rejected(apierr.UpstreamGitHub, 0, "decode file content "+path, err)
		}
		content = string(raw)
	}
	return sites.RemoteFile{Path: path, Content: content, SHA: out.SHA}, nil
}

// UpdateFile writes path guarded by sha. A stale sha is an UpstreamConflict.
func (c *Client) UpdateFile(ctx context.Context, org, name, branch string, file sites.RemoteFile, message string) error {
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(file.Content)),
		"sha":     file.SHA,
	}
	if branch != "" {
		body["branch"] = branch
	}
	err := c.do(ctx, http.MethodPut, repoPath(org, name, "/contents/"+file.Path), body, nil)
	if err == nil {
		return nil
	}
	status := httpx.StatusOf(err)
	if status == http.StatusConflict || (status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(httpx.BodyOf(err)), "sha")) {
		return apierr.Conflict(apierr.UpstreamGitHub, "stale sha for "+file.Path, err)
	}
	return err
}

func repoPath(org, name, suffix string) string {
	return fmt.Sprintf("/repos/%s/%s%s", url.PathEscape(org), url.PathEscape(name), suffix)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, "Bearer "+token, body, out)
}

func (c *Client) send(ctx context.Context, method, path, authorization string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	_, raw, err := httpx.Do(c.httpClient, req)
	if err != nil {
		return httpx.Classify(apierr.UpstreamGitHub, method+" "+strings.SplitN(path, "?", 2)[0], err)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.Rejected(apierr.UpstreamGitHub, 0, "decode "+path, err)
	}
	return nil
}
