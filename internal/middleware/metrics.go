package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushub/auth-api/internal/service"
)

// Metrics returns middleware that observes every handled request.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		// Label with the route template, not the raw URL: download requests
		// carry signed tokens in the query string and must stay out of the
		// metric label set.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, duration)
	}
}
