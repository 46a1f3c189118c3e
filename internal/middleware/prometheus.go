package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eduadvise-backend/pkg/metrics"
)

// HTTPMetrics records request counts, latency and in-flight gauge for
// every route.
func HTTPMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.IncrementHTTPRequestsInFlight()
		defer m.DecrementHTTPRequestsInFlight()

		start := time.Now()
		c.Next()

		// c.FullPath() keeps label cardinality bounded by using the
		// route pattern, not the raw URL
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// MetricsHandler exposes both the per-service registry and the default
// registry (where the realtime and call instruments live) on one endpoint.
func MetricsHandler(m *metrics.Metrics) gin.HandlerFunc {
	gatherers := prometheus.Gatherers{
		m.GetRegistry(),
		prometheus.DefaultGatherer,
	}
	handler := promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
