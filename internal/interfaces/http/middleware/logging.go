// Package middleware holds the gin middleware chain of the API server:
// request IDs, request logging, panic recovery, metrics and body limits.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
)

// LoggingConfig holds configuration for the request logging middleware.
type LoggingConfig struct {
	// SkipPaths are route paths that are never logged, e.g. probes.
	SkipPaths []string

	// SlowThreshold is the duration above which a successful request is
	// logged at warn level.  Zero disables the check.
	SlowThreshold time.Duration
}

// DefaultLoggingConfig skips the probe and scrape endpoints.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// RequestLogger logs one entry per request once the handler chain returns.
// 5xx responses are logged at error level, 4xx and slow requests at warn.
// A request-scoped logger carrying the request ID is stored in the request
// context for the handlers.
func RequestLogger(logger logging.Logger, cfg LoggingConfig) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		reqLog := logger.With(logging.String("request_id", RequestIDFrom(c)))
		c.Request = c.Request.WithContext(logging.NewContext(c.Request.Context(), reqLog))

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("route", route),
			logging.Int("status", status),
			logging.Duration("duration", duration),
			logging.Int("bytes", c.Writer.Size()),
			logging.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			reqLog.Error("request failed", fields...)
		case status >= 400:
			reqLog.Warn("request rejected", fields...)
		case cfg.SlowThreshold > 0 && duration >= cfg.SlowThreshold:
			reqLog.Warn("slow request", fields...)
		default:
			reqLog.Info("request completed", fields...)
		}
	}
}
