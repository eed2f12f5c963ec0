package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/idtoken"

	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

const (
	SessionCookieName = "darx_session"
	sessionIssuer     = "darx-site-generator"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("operator not allowed")
)

type AuthConfig struct {
	GoogleClientID string        `env:"GOOGLE_OAUTH_CLIENT_ID"`
	AllowedEmails  []string      `env:"OPERATOR_EMAILS" envSeparator:","`
	SessionSecret  string        `env:"SESSION_SECRET"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	CookieSecure   bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
	// LinkSecret lets the chat integration request onboarding links without
	// an operator session. Empty disables that path.
	LinkSecret string `env:"ONBOARDING_LINK_SECRET"`
}

// IDTokenValidator checks a Google ID token for audience.
type IDTokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// OperatorAuth signs operators in with Google and issues session tokens.
type OperatorAuth struct {
	log      *logger.Logger
	cfg      AuthConfig
	allowed  map[string]bool
	validate IDTokenValidator
	now      func() time.Time
}

func NewOperatorAuth(baseLog *logger.Logger, cfg AuthConfig, validate IDTokenValidator) (*OperatorAuth, error) {
	if strings.TrimSpace(cfg.SessionSecret) == "" {
		return nil, fmt.Errorf("missing env var SESSION_SECRET")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if validate == nil {
		validate = idtoken.Validate
	}
	allowed := map[string]bool{}
	for _, e := range cfg.AllowedEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			allowed[e] = true
		}
	}
	return &OperatorAuth{
		log:      baseLog.With("service", "OperatorAuth"),
		cfg:      cfg,
		allowed:  allowed,
		validate: validate,
		now:      time.Now,
	}, nil
}

func (a *OperatorAuth) SessionTTL() time.Duration { return a.cfg.SessionTTL }
func (a *OperatorAuth) CookieSecure() bool        { return a.cfg.CookieSecure }

// Allowed reports whether email is on the operator allow-list.
func (a *OperatorAuth) Allowed(email string) bool {
	return a.allowed[strings.ToLower(strings.TrimSpace(email))]
}

// LoginWithGoogle verifies idToken and returns a session token for an
// allowed, verified email.
func (a *OperatorAuth) LoginWithGoogle(ctx context.Context, idToken string) (string, string, error) {
	if strings.TrimSpace(idToken) == "" {
		return "", "", fmt.Errorf("%w: id_token is required", ErrUnauthenticated)
	}
	if a.cfg.GoogleClientID == "" {
		return "", "", fmt.Errorf("%w: Google sign-in is not configured", ErrUnauthenticated)
	}
	payload, err := a.validate(ctx, idToken, a.cfg.GoogleClientID)
	if err != nil {
		a.log.Warn("Google ID token rejected", "error", err)
		return "", "", fmt.Errorf("%w: invalid Google ID token", ErrUnauthenticated)
	}
	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if email == "" || !verified {
		return "", "", fmt.Errorf("%w: Google account email is not verified", ErrUnauthenticated)
	}
	if !a.Allowed(email) {
		a.log.Warn("Sign-in refused for email not on allow-list", "operator_email", email)
		return "", "", ErrForbidden
	}
	session, err := a.IssueSession(email)
	if err != nil {
		return "", "", err
	}
	a.log.Info("Operator signed in", "operator_email", email)
	return session, strings.ToLower(email), nil
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (a *OperatorAuth) IssueSession(email string) (string, error) {
	now := a.now()
	claims := sessionClaims{
		Email: strings.ToLower(strings.TrimSpace(email)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   strings.ToLower(strings.TrimSpace(email)),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.SessionSecret))
}

// CheckLinkSecret reports whether presented matches the configured
// onboarding link secret.
func (a *OperatorAuth) CheckLinkSecret(presented string) bool {
	if a.cfg.LinkSecret == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(a.cfg.LinkSecret)) == 1
}

// ParseSession returns the operator email in a valid session token.
// An email no longer on the allow-list yields ErrForbidden.
func (a *OperatorAuth) ParseSession(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrUnauthenticated
	}
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(a.cfg.SessionSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !a.Allowed(claims.Email) {
		return "", ErrForbidden
	}
	return claims.Email, nil
}
