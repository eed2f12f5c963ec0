package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/darx-site-generator/internal/platform/ctxutil"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
	"github.com/yungbote/darx-site-generator/internal/services"
)

// LinkSecretHeader carries the shared secret of the chat integration.
const LinkSecretHeader = "X-DARX-Link-Secret"

type SessionParser interface {
	ParseSession(token string) (string, error)
	CheckLinkSecret(presented string) bool
}

type AuthMiddleware struct {
	log      *logger.Logger
	sessions SessionParser
}

func NewAuthMiddleware(log *logger.Logger, sessions SessionParser) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), sessions: sessions}
}

// RequireOperator admits requests carrying a valid operator session in the
// session cookie or a Bearer header.
func (am *AuthMiddleware) RequireOperator() gin.HandlerFunc {
	return am.requireOperator
}

// RequireOperatorOrLinkSecret also admits callers presenting the onboarding
// link secret in LinkSecretHeader. Those requests carry no operator.
func (am *AuthMiddleware) RequireOperatorOrLinkSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if presented := c.GetHeader(LinkSecretHeader); presented != "" {
			if !am.sessions.CheckLinkSecret(presented) {
				am.log.Debug("Link secret rejected", "path", c.FullPath())
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": gin.H{"message": "invalid link secret", "code": "unauthorized"},
				})
				return
			}
			c.Next()
			return
		}
		am.requireOperator(c)
	}
}

func (am *AuthMiddleware) requireOperator(c *gin.Context) {
	token := extractSession(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": gin.H{"message": "missing session", "code": "unauthorized"},
		})
		return
	}
	email, err := am.sessions.ParseSession(token)
	if err != nil {
		status, code := http.StatusUnauthorized, "unauthorized"
		if errors.Is(err, services.ErrForbidden) {
			status, code = http.StatusForbidden, "forbidden"
		}
		am.log.Debug("Operator session rejected", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(status, gin.H{
			"error": gin.H{"message": err.Error(), "code": code},
		})
		return
	}
	ctx := ctxutil.WithOperator(c.Request.Context(), &ctxutil.Operator{Email: email})
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func extractSession(c *gin.Context) string {
	if v, err := c.Cookie(services.SessionCookieName); err == nil && v != "" {
		return v
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
