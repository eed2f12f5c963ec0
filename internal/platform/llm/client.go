package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/darx-site-generator/internal/observability"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/httpx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type Config struct {
	APIKey      string        `env:"ANTHROPIC_API_KEY"`
	BaseURL     string        `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com"`
	Model       string        `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5-20250929"`
	MaxTokens   int           `env:"ANTHROPIC_MAX_TOKENS" envDefault:"16384"`
	Temperature float64       `env:"ANTHROPIC_TEMPERATURE" envDefault:"0.1"`
	Timeout     time.Duration `env:"ANTHROPIC_TIMEOUT" envDefault:"300s"`
}

// Completion is one assistant reply.
type Completion struct {
	Text         string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Truncated reports whether generation stopped at the token ceiling.
func (c Completion) Truncated() bool { return c.StopReason == "max_tokens" }

// Client sends a single system+user exchange to the messages API.
type Client interface {
	Complete(ctx context.Context, system, user string) (Completion, error)
}

const (
	messagesPath     = "/v1/messages"
	anthropicVersion = "2023-06-01"
)

type client struct {
	log         *logger.Logger
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, apierr.Unavailable(apierr.UpstreamLLM, "missing ANTHROPIC_API_KEY", nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 16384
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	if !strings.HasPrefix(apiKey, "sk-ant-") {
		log.Warn("ANTHROPIC_API_KEY does not have the expected sk-ant- prefix", "key_length", len(apiKey))
	}
	return &client{
		log:         log.With("service", "LLMClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		httpClient:  httpx.NewClient(timeout),
	}, nil
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *client) Complete(ctx context.Context, system, user string) (Completion, error) {
	start := time.Now()
	body := messagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		System:      system,
		Messages:    []message{{Role: "user", Content: user}},
	}

	var out messagesResponse
	status, err := c.doOnce(ctx, http.MethodPost, messagesPath, body, &out)
	var completion Completion
	if err == nil {
		var b strings.Builder
		for _, part := range out.Content {
			if part.Type == "" || part.Type == "text" {
				b.WriteString(part.Text)
			}
		}
		completion = Completion{
			Text:         b.String(),
			StopReason:   out.StopReason,
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		}
	}
	observability.Current().ObserveLLMRequest(c.model, messagesPath, strconv.Itoa(status), time.Since(start), completion.InputTokens, completion.OutputTokens)
	if err != nil {
		c.log.Warn("LLM request failed", "status", status, "elapsed", time.Since(start).String(), "error", err)
		return Completion{}, err
	}
	if strings.TrimSpace(completion.Text) == "" {
		return Completion{}, apierr.Rejected(apierr.UpstreamLLM, status, "empty completion", nil)
	}
	c.log.Debug("LLM request finished",
		"elapsed", time.Since(start).String(),
		"stop_reason", completion.StopReason,
		"input_tokens", completion.InputTokens,
		"output_tokens", completion.OutputTokens,
	)
	return completion, nil
}

// doOnce performs exactly one request. Failures come back tagged with the LLM upstream.
func (c *client) doOnce(ctx context.Context, method, path string, body any, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, raw, err := httpx.Do(c.httpClient, req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if err != nil {
		return status, httpx.Classify(apierr.UpstreamLLM, "messages request", err)
	}
	if out == nil {
		return status, nil
	}
	if uErr := json.Unmarshal(raw, out); uErr != nil {
		return status, apierr.Rejected(apierr.UpstreamLLM, status, fmt.Sprintf("decode response: raw=%s", httpx.Truncate(string(raw), 200)), uErr)
	}
	return status, nil
}
