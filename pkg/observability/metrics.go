package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	registry *prometheus.Registry

	Iterations    prometheus.Counter
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	Scores        prometheus.Histogram
	Decisions     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quill_iterations_total",
			Help: "Total number of completed draft/score iterations",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quill_stage_duration_seconds",
			Help:    "Duration of stage runs, including model calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_stage_failures_total",
			Help: "Stage runs that ended with a degraded result",
		}, []string{"stage"}),
		Scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quill_scores",
			Help:    "Distribution of evaluator scores",
			Buckets: prometheus.LinearBuckets(10, 10, domain.MaxScore/10),
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_decisions_total",
			Help: "Progress decisions by outcome and reason",
		}, []string{"decision", "reason"}),
	}
	m.registry.MustRegister(m.Iterations, m.StageDuration, m.StageFailures, m.Scores, m.Decisions)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnd: func(_ context.Context, e *domain.StageEvent) {
			m.StageDuration.WithLabelValues(e.Stage).Observe(e.Duration.Seconds())
			if e.Status == domain.StageError {
				m.StageFailures.WithLabelValues(e.Stage).Inc()
			}
		},
		OnIteration: func(_ context.Context, e *domain.IterationEvent) {
			m.Iterations.Inc()
			m.Scores.Observe(float64(e.Record.Score))
		},
		OnDecision: func(_ context.Context, e *domain.DecisionEvent) {
			reason := string(e.Progress.Reason)
			if reason == "" {
				reason = "none"
			}
			m.Decisions.WithLabelValues(string(e.Progress.Decision), reason).Inc()
		},
	}
}
