package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

// RegistryCaller forwards one call to the site registry.
type RegistryCaller interface {
	Call(ctx context.Context, method, path string, query url.Values, body any) (int, map[string]any, error)
}

// RegistryHandler proxies /sites/* to the registry's /api/v1/sites/*.
type RegistryHandler struct {
	log      *logger.Logger
	registry RegistryCaller
}

func NewRegistryHandler(log *logger.Logger, registry RegistryCaller) *RegistryHandler {
	return &RegistryHandler{log: log.With("handler", "RegistryHandler"), registry: registry}
}

const registrySitesPath = "/api/v1/sites"

var listFilters = []string{"status", "health_status", "limit", "offset"}

// GET /sites
func (h *RegistryHandler) List(c *gin.Context) {
	q := url.Values{}
	for _, k := range listFilters {
		if v := c.Query(k); v != "" {
			q.Set(k, v)
		}
	}
	h.forward(c, http.MethodGet, registrySitesPath, q, nil, false)
}

// GET /sites/:slug
func (h *RegistryHandler) Get(c *gin.Context) {
	h.forward(c, http.MethodGet, sitePath(c), nil, nil, true)
}

// DELETE /sites/:slug
func (h *RegistryHandler) Delete(c *gin.Context) {
	body, ok := requireField(c, "deleted_by")
	if !ok {
		return
	}
	h.forward(c, http.MethodDelete, sitePath(c), nil, body, false)
}

// POST /sites/:slug/recover
func (h *RegistryHandler) Recover(c *gin.Context) {
	body, ok := requireField(c, "recovered_by")
	if !ok {
		return
	}
	h.forward(c, http.MethodPost, sitePath(c)+"/recover", nil, body, false)
}

// GET /sites/:slug/health
func (h *RegistryHandler) Health(c *gin.Context) {
	h.forward(c, http.MethodGet, sitePath(c)+"/health", nil, nil, true)
}

// POST /sites/:slug/health/check
func (h *RegistryHandler) CheckHealth(c *gin.Context) {
	h.forward(c, http.MethodPost, sitePath(c)+"/health/check", nil, nil, false)
}

func sitePath(c *gin.Context) string {
	return registrySitesPath + "/" + url.PathEscape(c.Param("slug"))
}

func requireField(c *gin.Context, field string) (map[string]any, bool) {
	var body map[string]any
	_ = c.ShouldBindJSON(&body)
	if _, ok := body[field]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": field + " is required"})
		return nil, false
	}
	return body, true
}

// forward relays the registry body. Anything but success=true is a 500,
// or a 404 when notFound is set and the error says so.
func (h *RegistryHandler) forward(c *gin.Context, method, path string, q url.Values, body any, notFound bool) {
	_, out, err := h.registry.Call(c.Request.Context(), method, path, q, body)
	if err != nil {
		h.log.Warn("Registry call failed", "method", method, "path", path, "error", err)
		out = map[string]any{"success": false, "error": fmt.Sprintf("Registry API error: %v", err)}
	}
	if ok, _ := out["success"].(bool); ok {
		c.JSON(http.StatusOK, out)
		return
	}
	status := http.StatusInternalServerError
	if msg, _ := out["error"].(string); notFound && strings.Contains(strings.ToLower(msg), "not found") {
		status = http.StatusNotFound
	}
	c.JSON(status, out)
}
