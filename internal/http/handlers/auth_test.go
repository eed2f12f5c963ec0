package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/darx-site-generator/internal/services"
)

type stubLogin struct{}

func (stubLogin) LoginWithGoogle(_ context.Context, idToken string) (string, string, error) {
	switch idToken {
	case "good":
		return "session-jwt", "ops@darx.example", nil
	case "stranger":
		return "", "", services.ErrForbidden
	default:
		return "", "", services.ErrUnauthenticated
	}
}

func (stubLogin) SessionTTL() time.Duration { return time.Hour }
func (stubLogin) CookieSecure() bool        { return true }

func TestGoogleLoginSetsSessionCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(stubLogin{})
	r := gin.New()
	r.POST("/auth/google", h.Google)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)

	rec, body := do(t, r, http.MethodPost, "/auth/google", "application/json", `{"id_token":"good"}`)
	if rec.Code != http.StatusOK || body["email"] != "ops@darx.example" {
		t.Fatalf("login: status=%d body=%v", rec.Code, body)
	}
	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == services.SessionCookieName {
			session = c
		}
	}
	if session == nil || session.Value != "session-jwt" || !session.HttpOnly || !session.Secure || session.MaxAge != 3600 {
		t.Fatalf("session cookie: got=%+v", session)
	}

	if rec, _ := do(t, r, http.MethodPost, "/auth/google", "application/json", `{"id_token":"stranger"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger: want=403 got=%d", rec.Code)
	}
	if rec, _ := do(t, r, http.MethodPost, "/auth/google", "application/json", `{"id_token":"forged"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged: want=401 got=%d", rec.Code)
	}
	if rec, _ := do(t, r, http.MethodPost, "/auth/google", "application/json", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing token: want=400 got=%d", rec.Code)
	}
	if rec, _ := do(t, r, http.MethodGet, "/auth/me", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without operator: want=401 got=%d", rec.Code)
	}

	rec, _ = do(t, r, http.MethodPost, "/auth/logout", "", "")
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == services.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("logout: session cookie not cleared")
	}
}
