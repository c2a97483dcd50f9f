package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"memberhub.backend/pkg/logger"
)

// LoggerMiddleware logs HTTP requests using the structured logger. Paths in
// skip (health checks, metrics scrapes) are not logged.
func LoggerMiddleware(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if _, ok := skipped[path]; ok {
			return
		}
		if raw != "" {
			path = path + "?" + raw
		}
		// identity and session ids were attached to the request context by the auth middleware
		logger.LogRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
