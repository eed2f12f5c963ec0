package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/http/response"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/ctxutil"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
	"github.com/yungbote/darx-site-generator/internal/services"
)

type Onboarding interface {
	IssueLink(ctx context.Context, rawSlug, requestedBy string) (services.OnboardingLink, error)
	Inspect(ctx context.Context, token string) (*types.OnboardingToken, error)
	Submit(ctx context.Context, token string, form services.OnboardingForm, submittedBy string) (*types.Client, error)
}

type OnboardingHandler struct {
	log *logger.Logger
	svc Onboarding
}

func NewOnboardingHandler(log *logger.Logger, svc Onboarding) *OnboardingHandler {
	return &OnboardingHandler{log: log.With("handler", "OnboardingHandler"), svc: svc}
}

func operatorEmail(c *gin.Context) string {
	if op := ctxutil.GetOperator(c.Request.Context()); op != nil {
		return op.Email
	}
	return ""
}

// POST /onboard/generate-link
func (h *OnboardingHandler) GenerateLink(c *gin.Context) {
	var req struct {
		ClientSlug  string `json:"client_slug"`
		RequesterID string `json:"requester_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.ClientSlug) == "" {
		response.RespondAPIError(c, apierr.Validationf("client_slug is required"))
		return
	}
	requestedBy := operatorEmail(c)
	if requestedBy == "" && strings.TrimSpace(req.RequesterID) != "" {
		requestedBy = "slack:" + strings.TrimSpace(req.RequesterID)
	}
	link, err := h.svc.IssueLink(c.Request.Context(), req.ClientSlug, requestedBy)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"success":          true,
		"onboarding_url":   link.URL,
		"client_slug":      link.ClientSlug,
		"expires_in_hours": link.ExpiresInHours,
	})
}

// GET /onboard/:token
func (h *OnboardingHandler) Inspect(c *gin.Context) {
	tok, err := h.svc.Inspect(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"valid":       true,
		"client_slug": tok.ClientSlug,
		"expires_at":  tok.ExpiresAt,
	})
}

// POST /onboard/:token accepts JSON or a posted HTML form.
func (h *OnboardingHandler) Submit(c *gin.Context) {
	var form services.OnboardingForm
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&form); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	} else {
		form = postedForm(c)
	}
	client, err := h.svc.Submit(c.Request.Context(), c.Param("token"), form, operatorEmail(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"client_id":   client.ID,
		"client_slug": client.Slug,
		"status":      client.Status,
	})
}

func postedForm(c *gin.Context) services.OnboardingForm {
	return services.OnboardingForm{
		ClientName:        c.PostForm("client_name"),
		ClientSlug:        c.PostForm("client_slug"),
		ContactEmail:      c.PostForm("contact_email"),
		WebsiteType:       c.PostForm("website_type"),
		Industry:          c.PostForm("industry"),
		Tier:              c.PostForm("tier"),
		BuilderPublicKey:  c.PostForm("builder_public_key"),
		BuilderPrivateKey: c.PostForm("builder_private_key"),
		BuilderSpaceID:    c.PostForm("builder_space_id"),
	}
}
