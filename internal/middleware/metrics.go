// metrics.go provides Gin middleware that records Prometheus metrics for every
// HTTP request passing through the router.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/telemetry"
)

// probePaths are hit by orchestrator liveness and readiness checks every few
// seconds; recording them would drown the real traffic series.
var probePaths = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// MetricsMiddleware records two Prometheus series per request:
//
//   - http_requests_total{method, path, status}    — CounterVec
//   - http_request_duration_seconds{method, path}  — HistogramVec
//
// The path label uses c.FullPath(), the matched route template
// (e.g. /api/v1/telegram/webhook or /api/v1/agents/:persona/chat), never the
// raw URL — concrete scan ids and chat ids would explode label cardinality.
// Unmatched requests (404/405) record the literal "<no-route>" for the same
// reason, and probe endpoints are not recorded at all.
//
// Register after gin.Recovery() so statuses set by error handlers are
// captured. See telemetry.HTTPRequestsTotal and telemetry.HTTPRequestDuration
// for example PromQL queries and alert rules.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if probePaths[path] {
			return
		}
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
