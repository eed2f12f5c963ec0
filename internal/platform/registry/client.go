package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/gcp"
	"github.com/yungbote/darx-site-generator/internal/platform/httpx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type Config struct {
	URL string `env:"REGISTRY_API_URL" envDefault:"http://localhost:8081"`
	// Audience defaults to URL.
	Audience   string        `env:"REGISTRY_AUDIENCE"`
	UseIDToken bool          `env:"REGISTRY_USE_ID_TOKEN" envDefault:"true"`
	Timeout    time.Duration `env:"REGISTRY_TIMEOUT" envDefault:"30s"`
}

// Client forwards calls to the site registry service.
type Client struct {
	log        *logger.Logger
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient builds a registry client. With ID tokens enabled, requests carry a
// Google ID token minted for the registry audience; if no credentials are
// available the client falls back to unauthenticated calls.
func NewClient(ctx context.Context, log *logger.Logger, cfg Config, gcpCfg gcp.Config) *Client {
	log = log.With("service", "RegistryClient")
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httpx.DefaultTimeout
	}
	httpClient := httpx.NewClient(timeout)
	if cfg.UseIDToken {
		audience := strings.TrimSpace(cfg.Audience)
		if audience == "" {
			audience = base
		}
		c, err := idtoken.NewClient(ctx, audience, gcpCfg.ClientOptions()...)
		if err != nil {
			log.Warn("Could not build id token client; registry calls are unauthenticated", "audience", audience, "error", err)
		} else {
			c.Timeout = timeout
			httpClient = c
		}
	}
	return &Client{log: log, baseURL: base, timeout: timeout, httpClient: httpClient}
}

// Call sends one request and returns the registry status and JSON body. A
// non-JSON reply is turned into a failure body. Only transport failures are
// returned as errors.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, body any) (int, map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, httpx.Classify(apierr.UpstreamRegistry, method+" "+path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, apierr.Unavailable(apierr.UpstreamRegistry, "read response", err)
	}

	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Warn("Registry returned non-JSON", "status", resp.StatusCode, "path", path)
		return resp.StatusCode, map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Non-JSON response from registry (status %d): %s", resp.StatusCode, httpx.Truncate(string(raw), 200)),
		}, nil
	}
	return resp.StatusCode, out, nil
}
