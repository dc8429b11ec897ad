package metrics

import (
	"context"
	"time"

	"github.com/marcelsud/assistant-gateway/webhook"
)

// Snapshot represents the current state of the ingestion pipeline.
type Snapshot struct {
	// QueueDepth is the number of queued events, in flight included
	QueueDepth int64 `json:"queue_depth"`

	// QueueCapacity is the configured bound of the queue
	QueueCapacity int64 `json:"queue_capacity"`

	// InFlight is the number of events a worker is currently dispatching
	InFlight int64 `json:"in_flight"`

	// DeadLetters is the number of retained dead letters
	DeadLetters int64 `json:"dead_letters"`

	// Workers lists dispatcher workers with a live heartbeat
	Workers []webhook.WorkerHeartbeat `json:"workers"`

	// Timestamp when the snapshot was taken
	Timestamp time.Time `json:"timestamp"`
}

// Collector defines the interface for collecting pipeline metrics.
type Collector interface {
	// Collect gathers the current snapshot
	Collect(ctx context.Context) (Snapshot, error)
}
