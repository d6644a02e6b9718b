package lookup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for identity lookups.
var (
	lookupAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardgate_lookup_attempts_total",
		Help: "Total search attempts by result",
	}, []string{"result"}) // result: "found", "empty", "transport_error"

	lookupResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardgate_lookup_resolutions_total",
		Help: "Total name resolutions by outcome",
	}, []string{"outcome"}) // outcome: "resolved", "not_found", "transport_error"

	lookupRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cardgate_lookup_request_duration_seconds",
		Help:    "Search API request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})
)
