// Package metrics exposes the gateway's Prometheus registry.
// All metrics are defined in their respective packages (client, auth, cache,
// aggregate, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package serves them and documents what is available.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's promauto metrics land in.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics in Registry.
var Gatherer = prometheus.DefaultGatherer

var buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "realty_build_info",
	Help: "Build information of the running gateway",
}, []string{"version"})

// SetBuildInfo records the running version.
func SetBuildInfo(version string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version).Set(1)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Upstream Metrics (pkg/client):
//   - realty_upstream_requests_total{host, status} (Counter): Upstream requests by host and HTTP status or error class
//   - realty_upstream_request_duration_seconds{host} (Histogram): Upstream request duration
//   - realty_upstream_errors_total{class} (Counter): Failures by class (client, auth, timeout, rate_limit, server, network)
//
// Retry Metrics (pkg/client):
//   - realty_retries_total{error_class} (Counter): Retry attempts by error class
//   - realty_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - realty_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Auth Metrics (pkg/auth):
//   - realty_token_refresh_total{strategy, result} (Counter): Token refresh attempts per strategy
//
// Cache Metrics (pkg/cache):
//   - realty_cache_hits_total{namespace} (Counter): Hits in the dictionaries and slugs namespaces
//   - realty_cache_misses_total{namespace} (Counter): Misses
//   - realty_cache_errors_total{operation} (Counter): Store and codec errors
//
// Aggregation Metrics (pkg/aggregate):
//   - realty_aggregation_failed_endpoints_total{object_type, endpoint} (Counter): Failed detail sub-endpoints
//
// Host Limiting Metrics (pkg/ratelimit):
//   - realty_host_inflight{host} (Gauge): Outbound requests in flight per host
//   - realty_host_cooldowns_total{host} (Counter): Cooldowns started after 429/503
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(realty_cache_hits_total[5m])) /
//   (sum(rate(realty_cache_hits_total[5m])) + sum(rate(realty_cache_misses_total[5m])))
//
//   # Incomplete detail views per object type
//   sum by (object_type) (rate(realty_aggregation_failed_endpoints_total[5m]))
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(realty_upstream_request_duration_seconds_bucket[5m]))
//
//   # Token refresh failures
//   rate(realty_token_refresh_total{result="failure"}[15m])
