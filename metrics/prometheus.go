package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marcelsud/assistant-gateway/webhook"
)

// Prometheus implements dispatch.Metrics and counts inbound webhooks and auth decisions
type Prometheus struct {
	attemptsTotal    *prometheus.CounterVec
	attemptLatency   *prometheus.HistogramVec
	deadLettersTotal *prometheus.CounterVec
	receivedTotal    *prometheus.CounterVec
	decisionsTotal   *prometheus.CounterVec
}

// NewPrometheus creates the counters and histograms in reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	factory := promauto.With(reg)

	return &Prometheus{
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Total number of consumer invocations by outcome.",
		}, []string{"source", "outcome"}),

		attemptLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_attempt_duration_seconds",
			Help:      "Latency of consumer invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),

		deadLettersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_letters_total",
			Help:      "Total number of dead-lettered events by failure type.",
		}, []string{"source", "failure_type"}),

		receivedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Total number of inbound webhooks by result.",
		}, []string{"source", "result"}),

		decisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_decisions_total",
			Help:      "Total number of authorization decisions.",
		}, []string{"role", "outcome"}),
	}
}

// RecordAttempt records one consumer invocation
func (m *Prometheus) RecordAttempt(source webhook.Source, _ string, outcome webhook.Outcome, latency time.Duration) {
	m.attemptsTotal.WithLabelValues(source.String(), string(outcome)).Inc()
	if outcome != webhook.OutcomeDuplicate {
		m.attemptLatency.WithLabelValues(source.String()).Observe(latency.Seconds())
	}
}

// RecordDeadLetter records an event leaving the queue unprocessed
func (m *Prometheus) RecordDeadLetter(source webhook.Source, failure webhook.FailureType) {
	m.deadLettersTotal.WithLabelValues(source.String(), string(failure)).Inc()
}

// RecordReceived records the HTTP result of an inbound webhook, e.g. "accepted", "bad_signature"
func (m *Prometheus) RecordReceived(source, result string) {
	m.receivedTotal.WithLabelValues(source, result).Inc()
}

// RecordDecision records an authorization outcome
func (m *Prometheus) RecordDecision(role, outcome string) {
	m.decisionsTotal.WithLabelValues(role, outcome).Inc()
}
