package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/httpx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type Config struct {
	Token         string        `env:"VERCEL_TOKEN"`
	TeamID        string        `env:"VERCEL_TEAM_ID"`
	BaseURL       string        `env:"VERCEL_API_URL" envDefault:"https://api.vercel.com"`
	DeployTarget  string        `env:"VERCEL_DEPLOY_TARGET" envDefault:"production"`
	StagingDomain string        `env:"VERCEL_STAGING_DOMAIN" envDefault:"vercel.app"`
	Timeout       time.Duration `env:"VERCEL_TIMEOUT" envDefault:"30s"`
}

// Client wraps the deploy platform REST API.
type Client struct {
	log           *logger.Logger
	baseURL       string
	token         string
	teamID        string
	target        string
	stagingDomain string
	timeout       time.Duration
	httpClient    *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, apierr.Unavailable(apierr.UpstreamVercel, "VERCEL_TOKEN not configured", nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.vercel.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httpx.DefaultTimeout
	}
	target := strings.TrimSpace(cfg.DeployTarget)
	if target == "" {
		target = "production"
	}
	domain := strings.TrimSpace(cfg.StagingDomain)
	if domain == "" {
		domain = "vercel.app"
	}
	return &Client{
		log:           log.With("service", "VercelClient"),
		baseURL:       baseURL,
		token:         token,
		teamID:        strings.TrimSpace(cfg.TeamID),
		target:        target,
		stagingDomain: domain,
		timeout:       timeout,
		httpClient:    httpx.NewClient(timeout),
	}, nil
}

// StagingURL is the stable alias a project's latest deployment is served on.
func (c *Client) StagingURL(projectName string) string {
	return fmt.Sprintf("https://%s.%s", projectName, c.stagingDomain)
}

type projectPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Link struct {
		RepoID int64 `json:"repoId"`
	} `json:"link"`
}

func (p projectPayload) project() sites.Project {
	return sites.Project{ID: p.ID, Name: p.Name, RepoID: p.Link.RepoID}
}

// EnsureProject returns the project called name, creating it linked to repo
// (org/name) when it does not exist.
func (c *Client) EnsureProject(ctx context.Context, name, repo string) (sites.Project, error) {
	var existing projectPayload
	err := c.do(ctx, http.MethodGet, "/v9/projects/"+url.PathEscape(name), nil, nil, &existing)
	if err == nil {
		return existing.project(), nil
	}
	if apierr.KindOf(err) != apierr.KindNotFound {
		return sites.Project{}, err
	}

	payload := map[string]any{
		"name":      name,
		"framework": "nextjs",
		"gitRepository": map[string]string{
			"type": "github",
			"repo": repo,
		},
		"buildCommand":    "npm run build",
		"devCommand":      "npm run dev",
		"installCommand":  "npm install",
		"outputDirectory": ".next",
	}
	var created projectPayload
	if err := c.do(ctx, http.MethodPost, "/v9/projects", nil, payload, &created); err != nil {
		return sites.Project{}, err
	}
	c.log.Info("Project created", "project", name, "project_id", created.ID, "repo", repo)
	return created.project(), nil
}

// SetEnvVars upserts vars on every target in one request. Empty values are skipped.
func (c *Client) SetEnvVars(ctx context.Context, projectID string, vars map[string]string) error {
	keys := make([]string, 0, len(vars))
	for k, v := range vars {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	payload := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		payload = append(payload, map[string]any{
			"key":    k,
			"value":  vars[k],
			"type":   "encrypted",
			"target": []string{"production", "preview", "development"},
		})
	}
	q := url.Values{"upsert": {"true"}}
	return c.do(ctx, http.MethodPost, "/v10/projects/"+url.PathEscape(projectID)+"/env", q, payload, nil)
}

type deploymentPayload struct {
	ID         string `json:"id"`
	ReadyState string `json:"readyState"`
	URL        string `json:"url"`
}

func (d deploymentPayload) deployment() sites.Deployment {
	u := d.URL
	if u != "" && !strings.HasPrefix(u, "http") {
		u = "https://" + u
	}
	return sites.Deployment{ID: d.ID, State: sites.ParseDeployState(d.ReadyState), URL: u}
}

// TriggerDeployment starts a build of ref from the project's linked repository.
func (c *Client) TriggerDeployment(ctx context.Context, project sites.Project, repo, ref string) (sites.Deployment, error) {
	if ref == "" {
		ref = "main"
	}
	payload := map[string]any{
		"name":    project.Name,
		"project": project.ID,
		"gitSource": map[string]any{
			"type":   "github",
			"repo":   repo,
			"repoId": project.RepoID,
			"ref":    ref,
		},
		"target": c.target,
	}
	var out deploymentPayload
	if err := c.do(ctx, http.MethodPost, "/v13/deployments", nil, payload, &out); err != nil {
		return sites.Deployment{}, err
	}
	if out.ID == "" {
		return sites.Deployment{}, apierr.Rejected(apierr.UpstreamVercel, 0, "deployment response had no id", nil)
	}
	c.log.Info("Deployment triggered", "project", project.Name, "deployment_id", out.ID, "ref", ref)
	return out.deployment(), nil
}

func (c *Client) GetDeployment(ctx context.Context, id string) (sites.Deployment, error) {
	var out deploymentPayload
	if err := c.do(ctx, http.MethodGet, "/v13/deployments/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return sites.Deployment{}, err
	}
	return out.deployment(), nil
}

type buildEvent struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Payload struct {
		Text string `json:"text"`
	} `json:"payload"`
}

// GetDeploymentLogs returns the build output lines in order.
func (c *Client) GetDeploymentLogs(ctx context.Context, id string) ([]string, error) {
	var events []buildEvent
	q := url.Values{"builds": {"1"}, "direction": {"forward"}}
	if err := c.do(ctx, http.MethodGet, "/v3/deployments/"+url.PathEscape(id)+"/events", q, nil, &events); err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		text := ev.Payload.Text
		if text == "" {
			text = ev.Text
		}
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// DeleteProject removes a project. A missing project counts as deleted.
func (c *Client) DeleteProject(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, "/v9/projects/"+url.PathEscape(name), nil, nil, nil)
	if err != nil && apierr.KindOf(err) == apierr.KindNotFound {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.teamID != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("teamId", c.teamID)
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	_, raw, err := httpx.Do(c.httpClient, req)
	if err != nil {
		return httpx.Classify(apierr.UpstreamVercel, method+" "+path, err)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.Rejected(apierr.UpstreamVercel, 0, "decode "+path, err)
	}
	return nil
}
