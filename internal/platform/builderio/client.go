package builderio

import (
	"bytes"
	"context"
	"encoding/json"
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
	// PublicKey and PrivateKey are the dedicated-space keys used outside intake mode.
	PublicKey     string        `env:"BUILDER_IO_PUBLIC_KEY"`
	PrivateKey    string        `env:"BUILDER_IO_PRIVATE_KEY"`
	OrgPrivateKey string        `env:"BUILDER_IO_ORG_PRIVATE_KEY"`
	ReadURL       string        `env:"BUILDER_IO_READ_URL" envDefault:"https://cdn.builder.io/api/v1"`
	WriteURL      string        `env:"BUILDER_IO_WRITE_URL" envDefault:"https://builder.io/api/v1"`
	Timeout       time.Duration `env:"BUILDER_IO_TIMEOUT" envDefault:"30s"`
}

// DedicatedCredentials returns the configured keys, tagged as coming from config.
func (c Config) DedicatedCredentials() sites.CMSCredentials {
	return sites.CMSCredentials{
		PublicKey:  strings.TrimSpace(c.PublicKey),
		PrivateKey: strings.TrimSpace(c.PrivateKey),
		Source:     "config",
	}
}

// Client talks to the visual CMS. Keys are passed per call because shared and
// dedicated spaces use different ones.
type Client struct {
	log        *logger.Logger
	readURL    string
	writeURL   string
	orgKey     string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(log *logger.Logger, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httpx.DefaultTimeout
	}
	readURL := strings.TrimRight(strings.TrimSpace(cfg.ReadURL), "/")
	if readURL == "" {
		readURL = "https://cdn.builder.io/api/v1"
	}
	writeURL := strings.TrimRight(strings.TrimSpace(cfg.WriteURL), "/")
	if writeURL == "" {
		writeURL = "https://builder.io/api/v1"
	}
	return &Client{
		log:        log.With("service", "BuilderIOClient"),
		readURL:    readURL,
		writeURL:   writeURL,
		orgKey:     strings.TrimSpace(cfg.OrgPrivateKey),
		timeout:    timeout,
		httpClient: httpx.NewClient(timeout),
	}
}

// CanCreateSpaces reports whether an organization key is configured.
func (c *Client) CanCreateSpaces() bool { return c.orgKey != "" }

// ConfigurePreview points model's preview URL at previewURL, creating the
// model when the space does not have it yet.
func (c *Client) ConfigurePreview(ctx context.Context, publicKey, privateKey, model, previewURL string) error {
	if strings.TrimSpace(publicKey) == "" || strings.TrimSpace(privateKey) == "" {
		return apierr.Validationf("cms keys are required to configure the preview url")
	}
	q := url.Values{"apiKey": {publicKey}}
	var current struct {
		ExamplePageURL string `json:"examplePageUrl"`
	}
	err := c.do(ctx, http.MethodGet, c.readURL+"/models/"+url.PathEscape(model), q, "", nil, &current)
	switch {
	case err == nil:
		payload := map[string]any{"examplePageUrl": previewURL}
		if err := c.do(ctx, http.MethodPut, c.writeURL+"/models/"+url.PathEscape(model), nil, privateKey, payload, nil); err != nil {
			return err
		}
		c.log.Info("Preview url updated", "model", model, "previous", current.ExamplePageURL, "preview_url", previewURL)
		return nil
	case apierr.KindOf(err) == apierr.KindNotFound:
		payload := map[string]any{
			"name":           titleCase(model),
			"id":             model,
			"kind":           "page",
			"examplePageUrl": previewURL,
			"publicReadable": true,
			"showTargeting":  true,
			"showMetrics":    true,
			"allowHeatmap":   true,
		}
		if err := c.do(ctx, http.MethodPost, c.writeURL+"/models", nil, privateKey, payload, nil); err != nil {
			return err
		}
		c.log.Info("Preview model created", "model", model, "preview_url", previewURL)
		return nil
	default:
		return err
	}
}

// CreateSpace provisions a space with the organization key. A 409 means the
// space exists already and is returned under name.
func (c *Client) CreateSpace(ctx context.Context, name, projectID string) (sites.CMSSpace, error) {
	if c.orgKey == "" {
		return sites.CMSSpace{}, apierr.Unavailable(apierr.UpstreamBuilderIO, "BUILDER_IO_ORG_PRIVATE_KEY not configured", nil)
	}
	settings := map[string]any{}
	if projectID != "" {
		settings["vercelProjectId"] = projectID
	}
	payload := map[string]any{"name": name, "settings": settings}

	var out struct {
		ID        string `json:"id"`
		PublicKey string `json:"publicKey"`
	}
	err := c.do(ctx, http.MethodPost, c.readURL+"/copy-space/create-space", nil, c.orgKey, payload, &out)
	if err != nil {
		if apierr.KindOf(err) == apierr.KindUpstreamRejected && httpx.StatusOf(err) == http.StatusConflict {
			c.log.Info("Space already exists", "space", name)
			return sites.CMSSpace{ID: name, URL: spaceURL(name)}, nil
		}
		return sites.CMSSpace{}, err
	}
	if out.ID == "" || out.PublicKey == "" {
		return sites.CMSSpace{}, apierr.Rejected(apierr.UpstreamBuilderIO, 0, "create space response missing id or public key", nil)
	}
	return sites.CMSSpace{ID: out.ID, PublicKey: out.PublicKey, URL: spaceURL(out.ID)}, nil
}

// ValidatePublicKey checks that key reads from its space.
func (c *Client) ValidatePublicKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return apierr.Validationf("no cms public key provided")
	}
	if !strings.HasPrefix(key, "pub-") {
		return apierr.Validationf("invalid cms public key format: keys start with \"pub-\"")
	}
	q := url.Values{"apiKey": {key}, "limit": {"1"}}
	return c.do(ctx, http.MethodGet, c.readURL+"/content/page", q, "", nil, nil)
}

func spaceURL(id string) string {
	return "https://builder.io/content?space=" + url.QueryEscape(id)
}

func titleCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func (c *Client) do(ctx context.Context, method, u string, query url.Values, bearer string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

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
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")

	_, raw, err := httpx.Do(c.httpClient, req)
	if err != nil {
		return httpx.Classify(apierr.UpstreamBuilderIO, method+" "+req.URL.Path, err)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.Rejected(apierr.UpstreamBuilderIO, 0, "decode "+req.URL.Path, err)
	}
	return nil
}
