// Package metrics exposes the Prometheus registry reqkit registers into.
// All metrics are defined in their respective packages (client, pagination,
// ratelimit, transport) via promauto.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer used by reqkit.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Retry Metrics (pkg/ratelimit):
//   - reqkit_retries_total{source} (Counter): Rate-limit retries by delay source (header, backoff)
//   - reqkit_retry_backoff_seconds{source} (Histogram): Wait before each retry
//   - reqkit_retry_exhausted_total (Counter): Operations still rate limited after the last retry
//   - reqkit_rate_limit_hits_recorded_total{outcome} (Counter): Tracker writes to Redis (stored, error)
//
// Pagination Metrics (pkg/pagination):
//   - reqkit_pagination_pages_total{strategy} (Counter): Pages fetched
//   - reqkit_pagination_items_total{strategy} (Counter): Items collected
//   - reqkit_pagination_ceiling_hits_total{strategy} (Counter): Paginations cut off by MaxPages
//
// Execution Metrics (pkg/client):
//   - reqkit_executions_total{mode, outcome} (Counter): Builder executions (mode single|all;
//     outcome success, precondition or an error class)
//   - reqkit_execution_duration_seconds{mode} (Histogram): Duration including retries and pages
//
// HTTP Metrics (pkg/transport):
//   - reqkit_http_requests_total{method, status} (Counter): HTTP attempts by status
//   - reqkit_http_request_duration_seconds{method} (Histogram): Single attempt duration
//
// Example Prometheus Queries:
//
//   # Share of 429 responses
//   sum(rate(reqkit_http_requests_total{status="429"}[5m])) / sum(rate(reqkit_http_requests_total[5m]))
//
//   # Retries driven by server hints
//   rate(reqkit_retries_total{source="header"}[5m])
//
//   # Paginations hitting the page ceiling
//   increase(reqkit_pagination_ceiling_hits_total[1h]) > 0
//
//   # P95 execution latency of paginated calls
//   histogram_quantile(0.95, rate(reqkit_execution_duration_seconds_bucket{mode="all"}[5m]))
