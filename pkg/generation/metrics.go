package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for generation.
var (
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardgate_generations_total",
		Help: "Total card generations by card kind and outcome",
	}, []string{"kind", "outcome"}) // outcome: "ok", "init_error", "render_error"

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cardgate_generation_duration_seconds",
		Help:    "Card generation duration in seconds by card kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	generationsShared = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardgate_generation_shared_total",
		Help: "Total requests served by joining an in-flight generation",
	}, []string{"kind"})

	storeWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardgate_generation_store_errors_total",
		Help: "Total generated artifacts that could not be written to the store",
	})
)
