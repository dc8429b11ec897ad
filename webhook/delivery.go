package webhook

import "time"

// Outcome describes what happened on a single delivery attempt
type Outcome string

const (
	OutcomeProcessed    Outcome = "processed"
	OutcomeRetry        Outcome = "retry"
	OutcomeDeadLettered Outcome = "dead_lettered"
	OutcomeDuplicate    Outcome = "duplicate"
)

// DeliveryRecord is an append-only audit entry written after every attempt
type DeliveryRecord struct {
	EventID   string    `json:"event_id"`
	Source    Source    `json:"source"`
	EventType string    `json:"event_type"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   Outcome   `json:"outcome"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
}

// FailureType classifies why an event was dead-lettered
type FailureType string

const (
	// FailureFatal is used when the consumer declared the payload unprocessable
	FailureFatal FailureType = "fatal"
	// FailureExhausted means transient failures used up every attempt
	FailureExhausted FailureType = "exhausted"
	// FailureUnroutable means no consumer is registered for the event
	FailureUnroutable FailureType = "unroutable"
)

// DeadLetter keeps an event that will not be retried automatically
type DeadLetter struct {
	Event          Event       `json:"event"`
	Attempts       int         `json:"attempts"`
	FailureType    FailureType `json:"failure_type"`
	LastError      string      `json:"last_error"`
	FirstFailedAt  time.Time   `json:"first_failed_at"`
	DeadLetteredAt time.Time   `json:"dead_lettered_at"`
}
