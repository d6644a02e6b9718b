package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Backend labels used by the metrics below.
const (
	backendDisk   = "disk"
	backendRedis  = "redis"
	backendMemory = "memory"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardgate_cache_hits_total",
			Help: "Total number of rendered card cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks cache misses (absent or expired) by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardgate_cache_misses_total",
			Help: "Total number of rendered card cache misses",
		},
		[]string{"backend"},
	)

	// CacheEvictions tracks removed entries by backend and reason
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardgate_cache_evictions_total",
			Help: "Total number of cache entries removed by the store",
		},
		[]string{"backend", "reason"}, // "expired", "ceiling", "orphaned"
	)

	// CacheSize tracks the stored footprint in bytes by backend
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardgate_cache_size_bytes",
			Help: "Current size of the rendered card cache in bytes",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardgate_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "delete", "evict"
	)
)
