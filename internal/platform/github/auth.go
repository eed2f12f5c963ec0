package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
)

// tokenSource hands out installation tokens, minting a new one shortly before
// the cached token expires. Concurrent refreshes share one request.
type tokenSource struct {
	appID          string
	installationID string
	signKey        any
	static         string
	now            func() time.Time
	mint           func(ctx context.Context, appJWT string) (installationToken, error)

	mu     sync.Mutex
	cached installationToken
	group  singleflight.Group
}

type installationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenRefreshSkew = time.Minute

func newTokenSource(cfg Config) (*tokenSource, error) {
	ts := &tokenSource{
		appID:          strings.TrimSpace(cfg.AppID),
		installationID: strings.TrimSpace(cfg.InstallationID),
		static:         strings.TrimSpace(cfg.Token),
		now:            time.Now,
	}
	if ts.static != "" {
		return ts, nil
	}
	if ts.appID == "" || ts.installationID == "" || strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, apierr.Unavailable(apierr.UpstreamGitHub,
			"GitHub App not configured; need GITHUB_APP_ID, GITHUB_APP_PRIVATE_KEY, GITHUB_APP_INSTALLATION_ID", nil)
	}
	pem := strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, apierr.Unavailable(apierr.UpstreamGitHub, "parse GITHUB_APP_PRIVATE_KEY", err)
	}
	ts.signKey = key
	return ts, nil
}

// appJWT signs the short-lived RS256 token that authenticates as the App itself.
func (ts *tokenSource) appJWT() (string, error) {
	now := ts.now()
	claims := jwt.RegisteredClaims{
		Issuer:    ts.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(ts.signKey)
	if err != nil {
		return "", fmt.Errorf("sign app jwt: %w", err)
	}
	return signed, nil
}

func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	if ts.static != "" {
		return ts.static, nil
	}
	ts.mu.Lock()
	cached := ts.cached
	ts.mu.Unlock()
	if cached.Token != "" && ts.now().Add(tokenRefreshSkew).Before(cached.ExpiresAt) {
		return cached.Token, nil
	}

	v, err, _ := ts.group.Do("installation", func() (any, error) {
		appJWT, err := ts.appJWT()
		if err != nil {
			return nil, err
		}
		tok, err := ts.mint(ctx, appJWT)
		if err != nil {
			return nil, err
		}
		ts.mu.Lock()
		ts.cached = tok
		ts.mu.Unlock()
		return tok.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) mintInstallationToken(ctx context.Context, appJWT string) (installationToken, error) {
	var out installationToken
	path := fmt.Sprintf("/app/installations/%s/access_tokens", c.tokens.installationID)
	if err := c.send(ctx, http.MethodPost, path, "Bearer "+appJWT, nil, &out); err != nil {
		return installationToken{}, err
	}
	if out.Token == "" {
		return installationToken{}, apierr.Rejected(apierr.UpstreamGitHub, 0, "installation token response had no token", nil)
	}
	return out, nil
}
