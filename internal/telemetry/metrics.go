// Package telemetry provides application-level observability for the Kita-kita backend.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<KITA_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router, so
// the web API and the Telegram webhook surface stay free of scrape traffic.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Linking workflow counters (codes issued, validation outcomes, consume races)
//   - Reconciliation gauge for burned codes without a matching account link
//   - Telegram update and receipt scan counters
//   - LLM request counters by kind and outcome
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/linking/code)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments.  Linking metrics are labelled by failure reason,
// never by code or chat id, for the same reason.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening:
//
//	import _ "github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/telemetry"
//
// Or import it directly and use an exported var:
//
//	telemetry.LinkingCodesIssuedTotal.Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /api/v1/linking/code),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
//
// Example PromQL queries:
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
//   - Average latency:                   rate(http_request_duration_seconds_sum[5m]) / rate(http_request_duration_seconds_count[5m])
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Linking workflow metrics — recorded by the linking service on every issue,
// validation, and consumption attempt.
//
// LinkingCodesIssuedTotal is a plain Counter incremented once per code written
// to the store.  Compare against consume outcomes to estimate abandonment.
//
// Example PromQL queries:
//   - Issue rate:            rate(linking_codes_issued_total[1h])
//   - Abandonment ratio:     1 - sum(rate(linking_code_validations_total{result="ok"}[6h])) / rate(linking_codes_issued_total[6h])
//
// LinkingCodeValidationsTotal is a CounterVec with label {result} holding the
// validation outcome: ok, malformed, not_found, already_used, or expired.
// Both the read-only admin validation endpoint and webhook consumption record here.
//
// Example PromQL queries:
//   - Failure breakdown:     sum by (result) (rate(linking_code_validations_total{result!="ok"}[1h]))
//   - Expiry pressure:       rate(linking_code_validations_total{result="expired"}[1h])
//
// LinkingConsumeConflictsTotal counts conditional-write losses: a consumption
// attempt that re-validated cleanly but found the row already flipped to used.
// A nonzero rate is normal under double-submit; a spike suggests clients
// retrying consumption, which the workflow deliberately never does.
//
// Example PromQL queries:
//   - Conflict rate:         rate(linking_consume_conflicts_total[1h])
var (
	LinkingCodesIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linking_codes_issued_total",
			Help: "Total number of linking codes issued.",
		},
	)

	LinkingCodeValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linking_code_validations_total",
			Help: "Total number of linking code validations, by result (ok, malformed, not_found, already_used, expired).",
		},
		[]string{"result"},
	)

	LinkingConsumeConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linking_consume_conflicts_total",
			Help: "Total number of code consumption attempts that lost the conditional write race.",
		},
	)
)

// LinkingBurnedUnlinkedCodes is a Gauge holding the number of consumed codes
// with no matching account link, as counted by the most recent reconciliation
// pass.  Steady zero is healthy; a persistent nonzero value means consumptions
// are failing between the code write and the link write.
//
// Example PromQL queries:
//   - Current backlog:       linking_burned_unlinked_codes
//   - Alert expression:      linking_burned_unlinked_codes > 0 for 30m
var LinkingBurnedUnlinkedCodes = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "linking_burned_unlinked_codes",
		Help: "Consumed linking codes without a matching account link, from the last reconciliation pass.",
	},
)

// Bot ingestion metrics — recorded by the Telegram webhook handler and the
// receipt ingestion pipeline.
//
// TelegramUpdatesTotal is a CounterVec with label {type} classifying each
// accepted webhook update: command, text, photo, or other.
//
// Example PromQL queries:
//   - Update mix:            sum by (type) (rate(telegram_updates_total[1h]))
//   - Photo share:           rate(telegram_updates_total{type="photo"}[1h])
//
// ReceiptScansTotal is a CounterVec with label {outcome}: parsed (transaction
// created), unparseable (archived but unreadable), duplicate (checksum already
// seen for this chat), or failed (download/archive error).
//
// Example PromQL queries:
//   - Parse success rate:    sum(rate(receipt_scans_total{outcome="parsed"}[6h])) / sum(rate(receipt_scans_total[6h]))
//   - Duplicate pressure:    rate(receipt_scans_total{outcome="duplicate"}[6h])
var (
	TelegramUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_total",
			Help: "Total number of Telegram webhook updates accepted, by update type.",
		},
		[]string{"type"},
	)

	ReceiptScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipt_scans_total",
			Help: "Total number of receipt photo ingestions, by outcome (parsed, unparseable, duplicate, failed).",
		},
		[]string{"outcome"},
	)
)

// LLMRequestsTotal is a CounterVec with labels {kind, outcome} counting calls
// to the model API.  kind is receipt_parse or agent_chat; outcome is ok,
// error, or timeout.  An elevated timeout rate usually precedes user-visible
// degradation, because both callers fall back to degraded behaviour rather
// than retrying.
//
// Example PromQL queries:
//   - Error rate by kind:    sum by (kind) (rate(llm_requests_total{outcome!="ok"}[1h]))
//   - Timeout share:         sum(rate(llm_requests_total{outcome="timeout"}[1h])) / sum(rate(llm_requests_total[1h]))
var LLMRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Total number of LLM API requests, by kind (receipt_parse, agent_chat) and outcome (ok, error, timeout).",
	},
	[]string{"kind", "outcome"},
)

// LinkResolveCacheTotal is a CounterVec with label {result} recording Redis
// cache behaviour on chat→user resolution: hit, miss, or bypass (cache
// disabled or unreachable).  The bypass counter doubles as a cheap Redis
// health signal.
//
// Example PromQL queries:
//   - Hit ratio:             sum(rate(link_resolve_cache_total{result="hit"}[1h])) / sum(rate(link_resolve_cache_total{result=~"hit|miss"}[1h]))
//   - Redis trouble:         rate(link_resolve_cache_total{result="bypass"}[5m]) > 0
var LinkResolveCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "link_resolve_cache_total",
		Help: "Total number of chat-to-user resolution cache lookups, by result (hit, miss, bypass).",
	},
	[]string{"result"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <KITA_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
