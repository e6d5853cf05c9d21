package middleware

import (
	"context"
	"regexp"

	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether profiling labels are added to requests.
	Enabled bool
	// SkipPaths get no labels (e.g. health checks).
	SkipPaths []string
	// SkipPathPrefixes get no labels either.
	SkipPathPrefixes []string
}

// DefaultProfilingConfig returns default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health", "/metrics"},
		SkipPathPrefixes: []string{"/debug"},
	}
}

// Profiling returns profiling middleware with default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig tags the CPU and allocation samples taken while a request
// runs with its method, route pattern and resource (e.g. "subscribers"), so
// flame graphs can be split per endpoint.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	skip := newPathSet(cfg.SkipPaths, cfg.SkipPathPrefixes)

	return func(c *gin.Context) {
		if skip.matches(c.Request.URL.Path) {
			c.Next()
			return
		}
		telemetry.WithProfilingLabels(c.Request.Context(), profilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context) map[string]string {
	labels := map[string]string{
		telemetry.ProfilingLabelMethod: c.Request.Method,
	}
	// Unmatched routes only carry the method
	if route := c.FullPath(); route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
		if resource := routeResource(route); resource != "" {
			labels[telemetry.ProfilingLabelController] = resource
		}
	}
	return labels
}

var (
	resourcePattern   = regexp.MustCompile(`^(?:/api(?:/[vV]\d+)?)?/([^/:*]+)`)
	apiVersionPattern = regexp.MustCompile(`^[vV]\d+$`)
)

// routeResource returns the first static segment after the API prefix:
// "/api/v1/subscribers/:id/usage" is "subscribers".
func routeResource(route string) string {
	m := resourcePattern.FindStringSubmatch(route)
	if m == nil || apiVersionPattern.MatchString(m[1]) {
		return ""
	}
	return m[1]
}
