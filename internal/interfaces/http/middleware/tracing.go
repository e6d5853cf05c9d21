package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// SkipPaths are not traced.
	SkipPaths []string
}

// DefaultTracingConfig traces everything except health and metrics scrapes.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "bizdash-backend",
		Enabled:     true,
		SkipPaths:   []string{"/health", "/metrics"},
	}
}

// TracingWithConfig starts a server span per request through otelgin.
// Spans are named "METHOD route", e.g. "GET /api/v1/subscribers/:id".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	skip := newPathSet(cfg.SkipPaths, nil)
	return otelgin.Middleware(cfg.ServiceName,
		otelgin.WithFilter(func(r *http.Request) bool { return !skip.matches(r.URL.Path) }),
	)
}

// SpanEnricher adds billing context to the request span: the request id and
// subscriber id up front, and once the handler returns, an error status and
// the API error code for 4xx and 5xx responses.
// It must run after RequestID and TracingWithConfig.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if id := GetRequestID(c); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if strings.Contains(c.FullPath(), "/subscribers/:id") {
			if id := c.Param("id"); id != "" && len(id) <= MaxRequestIDLength {
				span.SetAttributes(attribute.String("subscriber_id", id))
			}
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
		if code := c.GetString(ErrorCodeKey); code != "" {
			span.SetAttributes(attribute.String("error.code", code))
		}
	}
}
