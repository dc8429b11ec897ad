package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/assistant-gateway/webhook"
)

// QueueStats is the read-only view of the event queue used for gauges
type QueueStats interface {
	Depth() int
	InFlight() int
	Capacity() int
}

// GatewayCollector implements Collector over the queue and the configured stores
type GatewayCollector struct {
	queue       QueueStats
	deadLetters webhook.DeadLetterStore
	heartbeats  webhook.HeartbeatStore
}

// NewGatewayCollector creates a collector; heartbeats may be nil
func NewGatewayCollector(queue QueueStats, deadLetters webhook.DeadLetterStore, heartbeats webhook.HeartbeatStore) *GatewayCollector {
	return &GatewayCollector{
		queue:       queue,
		deadLetters: deadLetters,
		heartbeats:  heartbeats,
	}
}

// Collect gathers all metrics; queue figures never fail, store reads may
func (c *GatewayCollector) Collect(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		QueueDepth:    int64(c.queue.Depth()),
		QueueCapacity: int64(c.queue.Capacity()),
		InFlight:      int64(c.queue.InFlight()),
		Workers:       []webhook.WorkerHeartbeat{},
		Timestamp:     time.Now(),
	}

	count, err := c.deadLetters.Count(ctx)
	if err != nil {
		return snap, fmt.Errorf("counting dead letters: %w", err)
	}
	snap.DeadLetters = count

	if c.heartbeats != nil {
		workers, err := c.heartbeats.GetActiveWorkers(ctx)
		if err != nil {
			return snap, fmt.Errorf("getting active workers: %w", err)
		}
		snap.Workers = workers
	}

	return snap, nil
}
