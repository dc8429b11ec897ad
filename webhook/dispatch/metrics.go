package dispatch

import (
	"time"

	"github.com/marcelsud/assistant-gateway/webhook"
)

// Metrics receives one call per delivery attempt and per dead letter.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// RecordAttempt records the outcome and consumer latency of one attempt
	RecordAttempt(source webhook.Source, eventType string, outcome webhook.Outcome, latency time.Duration)

	// RecordDeadLetter records an event leaving the queue without being processed
	RecordDeadLetter(source webhook.Source, failure webhook.FailureType)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (NoopMetrics) RecordAttempt(webhook.Source, string, webhook.Outcome, time.Duration) {}
func (NoopMetrics) RecordDeadLetter(webhook.Source, webhook.FailureType)                 {}
