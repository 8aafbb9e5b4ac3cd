// Package metrics provides the Prometheus registry reference for the todo client.
// All metrics are defined in their respective packages (client, cache, query)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the todo client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - todo_cache_hits_total{layer="memory|redis"} (Counter): Cache hits by layer
//   - todo_cache_misses_total (Counter): Cache misses
//   - todo_cache_invalidations_total{tag} (Counter): Tag invalidations
//   - todo_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - todo_requests_total{endpoint, method, status} (Counter): Total requests by endpoint, method and HTTP status
//   - todo_request_duration_seconds{endpoint, method} (Histogram): Request duration
//   - todo_errors_total{class} (Counter): Errors by class (network, server, parse)
//
// Retry Metrics (pkg/client, caller-driven Retry only):
//   - todo_retries_total (Counter): Retry attempts
//   - todo_retry_exhausted_total (Counter): Operations that exhausted max attempts
//
// List Query Metrics (pkg/query):
//   - todo_query_fetches_total{result} (Counter): Fetch outcomes (success, error, superseded)
//   - todo_query_clamps_total (Counter): Page clamps after the collection shrank
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(todo_cache_hits_total[5m])) /
//   (sum(rate(todo_cache_hits_total[5m])) + sum(rate(todo_cache_misses_total[5m])))
//
//   # Request Error Rate
//   sum by (class) (rate(todo_errors_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(todo_request_duration_seconds_bucket[5m]))
//
//   # Superseded list fetches (rapid page changes)
//   rate(todo_query_fetches_total{result="superseded"}[5m])
