// Package metrics instruments the verification pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors. Registered once at
// construction on the default registry.
type Metrics struct {
	submissions    *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	failures       *prometheus.CounterVec
	reviews        *prometheus.CounterVec
	scoringRetries prometheus.Counter
	stageDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_verification_submissions_total",
			Help: "Verification attempts started, by trigger.",
		}, []string{"trigger"}),
		decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_verification_decisions_total",
			Help: "Automatic decisions reached, by outcome.",
		}, []string{"outcome"}),
		failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_verification_failures_total",
			Help: "Attempts that ended in FAILED, by pipeline stage.",
		}, []string{"stage"}),
		reviews: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_verification_reviews_total",
			Help: "Admin review resolutions, by result.",
		}, []string{"result"}),
		scoringRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_scoring_retries_total",
			Help: "Scoring calls retried after a transient failure.",
		}),
		stageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veridoc_pipeline_stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

func (m *Metrics) SubmissionStarted(trigger string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(trigger).Inc()
}

func (m *Metrics) DecisionReached(outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AttemptFailed(stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ReviewResolved(result string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(result).Inc()
}

func (m *Metrics) ScoringRetried() {
	if m == nil {
		return
	}
	m.scoringRetries.Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
