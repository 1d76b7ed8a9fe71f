// Package metrics exposes prometheus collectors for question pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for RequestsTotal.
const (
	OutcomeExecuted       = "executed"
	OutcomeExecutionError = "execution_error"
	OutcomeInvalidSQL     = "invalid_sql"
	OutcomeFailed         = "failed"
	OutcomeGenerated      = "generated"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_requests_total",
			Help: "Total number of questions processed, by outcome.",
		},
		[]string{"outcome"},
	)
	stageDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_stage_duration_ms",
			Help:    "Pipeline stage latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"stage"},
	)
	translationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_translation_failures_total",
			Help: "Total number of failed translations, by provider.",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		stageDurationMs,
		translationFailuresTotal,
	)
}

// ObserveRequest records one finished pipeline run.
func ObserveRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, elapsed time.Duration) {
	stageDurationMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

// IncrementTranslationFailure counts a failed call to provider.
func IncrementTranslationFailure(provider string) {
	translationFailuresTotal.WithLabelValues(provider).Inc()
}
