package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// Metrics counts requests by method, route template and status and tracks
// in-flight requests by method.  Unmatched
// routes share the "unmatched" label so that scanners cannot blow up the
// label cardinality.
func Metrics(m *prometheus.SynastryMetrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		done := prometheus.TrackHTTPInFlight(m, c.Request.Method)
		defer done()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		prometheus.RecordHTTPRequest(m, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
