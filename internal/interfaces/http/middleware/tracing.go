// Package middleware provides HTTP middleware for the inventory API.
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
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
	// SkipPaths are served without a span. Paths ending in "/" match as prefixes.
	SkipPaths []string
}

// DefaultTracingConfig returns default tracing configuration. Health probes and
// the long-lived item streams are not traced.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "astroguard-backend",
		Enabled:     true,
		SkipPaths:   []string{"/health", "/api/v1/items/stream", "/api/v1/items/ws"},
	}
}

// Tracing returns OpenTelemetry tracing middleware built on otelgin.
// The span name is "METHOD route", e.g. "POST /api/v1/detections/image".
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}
	return otelgin.Middleware(cfg.ServiceName, otelgin.WithFilter(skipFilter(cfg.SkipPaths)))
}

// skipFilter returns an otelgin filter that is false for skipped paths
func skipFilter(paths []string) otelgin.Filter {
	return func(r *http.Request) bool {
		for _, p := range paths {
			if r.URL.Path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(r.URL.Path, p)) {
				return false
			}
		}
		return true
	}
}

// TracingAttributeInjector adds the request id to the current span.
// Place it after RequestID and Tracing.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if requestID := GetRequestID(c); requestID != "" {
				span.SetAttributes(attribute.String("request_id", requestID))
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks spans of 4xx and 5xx responses with error status and
// records the API error code when the handler left one in the context.
// Place it after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}

		span.SetStatus(codes.Error, spanErrorDescription(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
		if code := c.GetString(ErrorCodeKey); code != "" {
			span.SetAttributes(attribute.String("error.code", code))
		}
	}
}

// ErrorCodeKey is the gin context key under which handlers store the API error code
const ErrorCodeKey = "error_code"

func spanErrorDescription(status int) string {
	switch {
	case status == http.StatusBadGateway:
		return "Detection Provider Error"
	case status == http.StatusGatewayTimeout:
		return "Detection Provider Timeout"
	case status >= http.StatusInternalServerError:
		return "Internal Server Error"
	case status == http.StatusNotFound:
		return "Not Found"
	case status == http.StatusRequestEntityTooLarge:
		return "Request Too Large"
	default:
		return "Client Error"
	}
}
