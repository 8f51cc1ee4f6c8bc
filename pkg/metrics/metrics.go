// Package metrics exposes Prometheus instrumentation for the generation
// workflow: stage runs and durations, per-model generation attempts, and
// image failures.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	stageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zelta",
		Name:      "stage_runs_total",
		Help:      "Stage runs by stage number and outcome.",
	}, []string{"stage", "outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zelta",
		Name:      "stage_duration_seconds",
		Help:      "Wall time of stage runs, including generation retries.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"stage"})

	generationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zelta",
		Name:      "generation_attempts_total",
		Help:      "Individual generation-backend calls by model and outcome.",
	}, []string{"model", "outcome"})

	imageFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zelta",
		Name:      "image_failures_total",
		Help:      "Image generations that failed and produced a null reference.",
	})
)

// ObserveStageRun records one completed stage run.
func ObserveStageRun(stage int, outcome string, duration time.Duration) {
	s := strconv.Itoa(stage)
	stageRuns.WithLabelValues(s, outcome).Inc()
	stageDuration.WithLabelValues(s).Observe(duration.Seconds())
}

// RecordGenerationAttempt records one backend call.
func RecordGenerationAttempt(model, outcome string) {
	generationAttempts.WithLabelValues(model, outcome).Inc()
}

// RecordImageFailure records one failed image generation.
func RecordImageFailure() {
	imageFailures.Inc()
}

// Handler serves the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
