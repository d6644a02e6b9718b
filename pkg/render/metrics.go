package render

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the renderer.
var (
	initsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardgate_renderer_inits_total",
		Help: "Total renderer initialization attempts by outcome",
	}, []string{"outcome"})

	renderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cardgate_renderer_duration_seconds",
		Help:    "Renderer call duration in seconds by card kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	rendererRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardgate_renderer_requests_total",
		Help: "Total HTTP requests to the render backend by endpoint and status",
	}, []string{"endpoint", "status"})
)
