package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/darx-site-generator/internal/platform/ctxutil"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

var probePaths = map[string]bool{
	"/health":      true,
	"/healthcheck": true,
	"/metrics":     true,
}

// RequestLogger writes one line per request. Probe traffic only logs at debug
// level unless it fails.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if slug := c.Param("slug"); slug != "" {
			kv = append(kv, "client_slug", slug)
		}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			kv = append(kv, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		if op := ctxutil.GetOperator(c.Request.Context()); op != nil {
			kv = append(kv, "operator_email", op.Email)
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("request failed", kv...)
		case status >= 400:
			log.Warn("request rejected", kv...)
		case probePaths[route]:
			log.Debug("probe", kv...)
		default:
			log.Info("request served", kv...)
		}
	}
}
