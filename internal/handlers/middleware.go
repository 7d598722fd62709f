package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger writes one structured line per request. The WebSocket route
// is logged once, when the connection closes.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	if h.log == nil {
		return
	}
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"latency", time.Since(start),
		"client_ip", c.ClientIP(),
	}
	if len(c.Errors) > 0 {
		h.log.Warnw("http_request", append(fields, "errors", c.Errors.String())...)
		return
	}
	h.log.Debugw("http_request", fields...)
}
