package middleware

import (
	"time"

	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// DefaultMetricsSkipPaths are never recorded
var DefaultMetricsSkipPaths = []string{"/metrics", "/health"}

// HTTPMetrics records request count, latency and response size per route
// pattern. A nil m disables the middleware.
func HTTPMetrics(m *telemetry.HTTPMetrics, skipPaths ...string) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	skip := newPathSet(skipPaths, nil)

	return func(c *gin.Context) {
		if skip.matches(c.Request.URL.Path) {
			c.Next()
			return
		}
		start := time.Now()
		done := m.InFlight()
		defer done()

		c.Next()

		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), c.Writer.Size(), time.Since(start))
	}
}
