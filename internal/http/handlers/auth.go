package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/darx-site-generator/internal/http/response"
	"github.com/yungbote/darx-site-generator/internal/services"
)

type OperatorLogin interface {
	LoginWithGoogle(ctx context.Context, idToken string) (string, string, error)
	SessionTTL() time.Duration
	CookieSecure() bool
}

type AuthHandler struct {
	auth OperatorLogin
}

func NewAuthHandler(auth OperatorLogin) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// POST /auth/google
func (ah *AuthHandler) Google(c *gin.Context) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IDToken == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("id_token is required"))
		return
	}
	session, email, err := ah.auth.LoginWithGoogle(c.Request.Context(), req.IDToken)
	if err != nil {
		status := http.StatusUnauthorized
		code := "unauthorized"
		if errors.Is(err, services.ErrForbidden) {
			status, code = http.StatusForbidden, "forbidden"
		}
		response.RespondError(c, status, code, err)
		return
	}
	ah.setSession(c, session, int(ah.auth.SessionTTL().Seconds()))
	response.RespondOK(c, gin.H{"email": email, "expires_in": int(ah.auth.SessionTTL().Seconds())})
}

// POST /auth/logout
func (ah *AuthHandler) Logout(c *gin.Context) {
	ah.setSession(c, "", -1)
	response.RespondOK(c, gin.H{"ok": true})
}

// GET /auth/me
func (ah *AuthHandler) Me(c *gin.Context) {
	email := operatorEmail(c)
	if email == "" {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", services.ErrUnauthenticated)
		return
	}
	response.RespondOK(c, gin.H{"email": email})
}

func (ah *AuthHandler) setSession(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(services.SessionCookieName, value, maxAge, "/", "", ah.auth.CookieSecure(), true)
}
