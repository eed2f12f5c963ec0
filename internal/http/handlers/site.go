package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/http/response"
	"github.com/yungbote/darx-site-generator/internal/pipeline"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type SiteGenerator interface {
	Generate(ctx context.Context, req sites.GenerationRequest) (pipeline.GenerationResult, error)
}

type SiteEditor interface {
	Edit(ctx context.Context, req sites.EditRequest) (pipeline.EditResult, error)
}

type SiteHandler struct {
	log    *logger.Logger
	gen    SiteGenerator
	editor SiteEditor
	now    func() time.Time
}

func NewSiteHandler(log *logger.Logger, gen SiteGenerator, editor SiteEditor) *SiteHandler {
	return &SiteHandler{
		log:    log.With("handler", "SiteHandler"),
		gen:    gen,
		editor: editor,
		now:    time.Now,
	}
}

type generationSuccess struct {
	Success bool `json:"success"`
	pipeline.GenerationResult
	GenerationTime float64 `json:"generation_time"`
	Timestamp      string  `json:"timestamp"`
}

// POST / and POST /generate
func (h *SiteHandler) Generate(c *gin.Context) {
	var req sites.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondGenerationFailure(c, apierr.Validationf("invalid request body: %v", err).WithCode("invalid_request"), h.now())
		return
	}
	res, err := h.gen.Generate(c.Request.Context(), req)
	if err != nil {
		response.RespondGenerationFailure(c, err, h.now())
		return
	}
	response.RespondOK(c, generationSuccess{
		Success:          true,
		GenerationResult: res,
		GenerationTime:   response.Seconds(res.Elapsed),
		Timestamp:        h.now().UTC().Format(time.RFC3339),
	})
}

type editSuccess struct {
	Success bool `json:"success"`
	pipeline.EditResult
	EditTime float64 `json:"edit_time"`
}

// POST /edit
func (h *SiteHandler) Edit(c *gin.Context) {
	var req sites.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.Validationf("invalid request body: %v", err).WithCode("invalid_request"))
		return
	}
	res, err := h.editor.Edit(c.Request.Context(), req)
	if err != nil {
		h.log.Warn("Edit failed", "slug", req.ProjectName, "edit_type", req.Category, "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, editSuccess{
		Success:    true,
		EditResult: res,
		EditTime:   response.Seconds(res.Elapsed),
	})
}
