// Package http assembles the gin engine and HTTP server of the API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

// RouterConfig carries the handlers and cross-cutting dependencies.  Nil
// handlers leave their routes unregistered.
type RouterConfig struct {
	ChartHandler         *handlers.ChartHandler
	CompatibilityHandler *handlers.CompatibilityHandler
	ActivationHandler    *handlers.ActivationHandler
	HealthHandler        *handlers.HealthHandler

	Logger  logging.Logger
	Metrics *prometheus.SynastryMetrics
	// MetricsCollector serves the scrape endpoint at MetricsPath.
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string

	Logging     middleware.LoggingConfig
	MaxBodySize int64
}

// NewRouter builds the gin engine.  The caller must have set the gin mode.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	log := cfg.Logger.Named("http")

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log, cfg.Logging),
		middleware.Recovery(log, cfg.Metrics),
		middleware.Metrics(cfg.Metrics),
		middleware.BodyLimit(cfg.MaxBodySize),
	)
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		notFound := common.NewErrorResponse(string(errors.ErrCodeNotFound), "route not found")
		notFound.RequestID = middleware.RequestIDFrom(c)
		c.JSON(http.StatusNotFound, notFound)
	})
	r.NoMethod(func(c *gin.Context) {
		resp := common.NewErrorResponse(string(errors.ErrCodeBadRequest), "method not allowed")
		resp.RequestID = middleware.RequestIDFrom(c)
		c.JSON(http.StatusMethodNotAllowed, resp)
	})

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	v1 := r.Group("/api/v1")
	if cfg.ChartHandler != nil {
		cfg.ChartHandler.RegisterRoutes(v1)
	}
	if cfg.CompatibilityHandler != nil {
		cfg.CompatibilityHandler.RegisterRoutes(v1)
	}
	if cfg.ActivationHandler != nil {
		cfg.ActivationHandler.RegisterRoutes(v1)
	}
	return r
}
