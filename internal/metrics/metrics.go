// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	EventsIngested     *prometheus.CounterVec
	ValidationFailures prometheus.Counter
	MutationErrors     *prometheus.CounterVec
	IngestDuration     prometheus.Histogram
	RateLimitHits      *prometheus.CounterVec
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		EventsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_ingested_total",
				Help: "Accepted tracking events by type",
			},
			[]string{"type"},
		),
		ValidationFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_validation_failures_total",
				Help: "Events rejected by payload validation",
			},
		),
		MutationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_mutation_errors_total",
				Help: "Aggregate store mutation failures by counter group",
			},
			[]string{"group"},
		),
		IngestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "analytics_ingest_duration_seconds",
				Help:    "Time spent processing one tracking event",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_rate_limit_hits_total",
				Help: "Requests rejected by the rate limiter by endpoint class",
			},
			[]string{"class"},
		),
	}
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
