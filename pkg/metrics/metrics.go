package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks scheduled job runs. A nil *JobMetrics is a no-op.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return nil
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zielmanager",
		Name:      "job_duration_seconds",
		Help:      "Duration of scheduled jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zielmanager",
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by outcome.",
	}, []string{"job", "outcome"})
	reg.MustRegister(duration, runs)
	return &JobMetrics{duration: duration, runs: runs}
}

// Observe records one run of job. Outcome is "success", "failure" or
// "skipped" when another replica held the lock.
func (m *JobMetrics) Observe(job, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	job = label(job)
	m.runs.WithLabelValues(job, outcome).Inc()
	if outcome != "skipped" {
		m.duration.WithLabelValues(job).Observe(took.Seconds())
	}
}

// EmailMetrics counts email attempts by kind and outcome.
type EmailMetrics struct {
	sent *prometheus.CounterVec
}

func NewEmailMetrics(reg prometheus.Registerer) *EmailMetrics {
	if reg == nil {
		return nil
	}
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zielmanager",
		Name:      "emails_total",
		Help:      "Emails attempted, by kind and outcome.",
	}, []string{"kind", "outcome"})
	reg.MustRegister(sent)
	return &EmailMetrics{sent: sent}
}

func (m *EmailMetrics) Sent(kind string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(label(kind), "sent").Inc()
}

func (m *EmailMetrics) Failed(kind string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(label(kind), "failed").Inc()
}

func (m *EmailMetrics) Skipped(kind string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(label(kind), "skipped").Inc()
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
