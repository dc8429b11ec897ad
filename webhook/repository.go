package webhook

import (
	"context"
	"time"
)

/* Small, focused interfaces following "The Go Way"
 * Implementations live in webhook/memory and webhook/redis
 */

// DeliveryReader provides read access to the delivery audit log
type DeliveryReader interface {
	/* Processed reports whether an event already reached the processed outcome
	 * This is the dedupe check used on redelivery
	 */
	Processed(ctx context.Context, eventID string) (bool, error)
	History(ctx context.Context, eventID string) ([]DeliveryRecord, error)
}

// DeliveryWriter appends to the delivery audit log
type DeliveryWriter interface {
	// Append must be atomic per record; workers call it concurrently
	Append(ctx context.Context, record DeliveryRecord) error
}

// DeliveryLog combines both sides of the audit log
type DeliveryLog interface {
	DeliveryReader
	DeliveryWriter
}

// DeadLetterStore retains events that will not be retried automatically
type DeadLetterStore interface {
	Put(ctx context.Context, dl DeadLetter) error
	Get(ctx context.Context, eventID string) (DeadLetter, error)
	List(ctx context.Context, limit int) ([]DeadLetter, error)
	Remove(ctx context.Context, eventID string) error
	Count(ctx context.Context) (int64, error)
}

// WorkerHeartbeat is the last reported state of a dispatcher worker
type WorkerHeartbeat struct {
	WorkerID      string    `json:"worker_id"`
	Status        string    `json:"status"` // "idle", "processing"
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// HeartbeatStore records dispatcher worker liveness
type HeartbeatStore interface {
	SetWorkerHeartbeat(ctx context.Context, workerID, status string) error
	GetActiveWorkers(ctx context.Context) ([]WorkerHeartbeat, error)
}
