// Package metrics provides the Prometheus registry and scrape handler for the card gateway.
// All metrics are defined in their respective packages (cache, generation, lookup, render)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - cardgate_cache_hits_total{backend} (Counter): Store hits by backend (disk, redis, memory)
//   - cardgate_cache_misses_total{backend} (Counter): Store misses, expired entries included
//   - cardgate_cache_evictions_total{backend, reason} (Counter): Removals by reason (expired, ceiling, orphaned)
//   - cardgate_cache_size_bytes{backend} (Gauge): Bytes currently held
//   - cardgate_cache_errors_total{backend, operation} (Counter): Store operation errors
//
// Generation Metrics (pkg/generation):
//   - cardgate_generations_total{kind, outcome} (Counter): Generations by card kind and outcome (ok, init_error, render_error)
//   - cardgate_generation_duration_seconds{kind} (Histogram): Generation duration
//   - cardgate_generation_shared_total{kind} (Counter): Requests that joined an in-flight generation
//   - cardgate_generation_store_errors_total (Counter): Generated cards that could not be persisted
//
// Lookup Metrics (pkg/lookup):
//   - cardgate_lookup_attempts_total{result} (Counter): Search attempts (found, empty, transport_error)
//   - cardgate_lookup_resolutions_total{outcome} (Counter): Resolutions (resolved, not_found, transport_error)
//   - cardgate_lookup_request_duration_seconds (Histogram): Search API latency
//
// Renderer Metrics (pkg/render):
//   - cardgate_renderer_inits_total{outcome} (Counter): Renderer init attempts
//   - cardgate_renderer_duration_seconds{kind} (Histogram): Render duration by card kind
//   - cardgate_renderer_requests_total{endpoint, status} (Counter): Render backend requests
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(cardgate_cache_hits_total[5m])) /
//   (sum(rate(cardgate_cache_hits_total[5m])) + sum(rate(cardgate_cache_misses_total[5m])))
//
//   # Coalescing Ratio
//   sum(rate(cardgate_generation_shared_total[5m])) / sum(rate(cardgate_generations_total[5m]))
//
//   # Generation Failure Rate
//   sum(rate(cardgate_generations_total{outcome!="ok"}[5m]))
//
//   # P95 Generation Latency
//   histogram_quantile(0.95, rate(cardgate_generation_duration_seconds_bucket[5m]))
//
//   # Lookups Needing A Retry
//   rate(cardgate_lookup_attempts_total{result="empty"}[5m])
