package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tablequeue"

// Outcomes recorded on completed jobs.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the worker collectors. A nil *Metrics records nothing.
type Metrics struct {
	claimed     *prometheus.CounterVec
	completed   *prometheus.CounterVec
	idlePolls   *prometheus.CounterVec
	claimErrors *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		claimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_claimed_total",
			Help:      "Jobs claimed by the poll loop.",
		}, []string{"queue"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Jobs whose result was recorded, by outcome.",
		}, []string{"queue", "outcome"}),
		idlePolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_polls_total",
			Help:      "Polls that found no eligible job.",
		}, []string{"queue"}),
		claimErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_errors_total",
			Help:      "Claims that failed because the store was unavailable.",
		}, []string{"queue"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent running a job's callable.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"queue"}),
	}

	for _, c := range []prometheus.Collector{m.claimed, m.completed, m.idlePolls, m.claimErrors, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) JobClaimed(queue string) {
	if m == nil {
		return
	}
	m.claimed.WithLabelValues(queue).Inc()
}

func (m *Metrics) JobCompleted(queue, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.completed.WithLabelValues(queue, outcome).Inc()
	m.duration.WithLabelValues(queue).Observe(took.Seconds())
}

func (m *Metrics) IdlePoll(queue string) {
	if m == nil {
		return
	}
	m.idlePolls.WithLabelValues(queue).Inc()
}

func (m *Metrics) ClaimError(queue string) {
	if m == nil {
		return
	}
	m.claimErrors.WithLabelValues(queue).Inc()
}
