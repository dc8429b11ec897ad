package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelsud/assistant-gateway/webhook"
)

/* Dispatcher workers report liveness as one JSON key each
 * A worker whose key expired is no longer counted by /health or the workers gauge
 */
const (
	workerKeyPrefix = "gateway:worker"
	workerTTL       = 60 * time.Second // four missed 15s beats
	workerScanCount = 100
)

func workerKey(workerID string) string {
	return workerKeyPrefix + ":" + workerID
}

// SetWorkerHeartbeat records that workerID is alive and idle or processing
func (r *Repository) SetWorkerHeartbeat(ctx context.Context, workerID, status string) error {
	data, err := json.Marshal(webhook.WorkerHeartbeat{
		WorkerID:      workerID,
		Status:        status,
		LastHeartbeat: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("encoding worker %s heartbeat: %w", workerID, err)
	}
	if err := r.client.Set(ctx, workerKey(workerID), data, workerTTL).Err(); err != nil {
		return fmt.Errorf("storing worker %s heartbeat: %w", workerID, err)
	}
	return nil
}

// GetActiveWorkers lists workers whose heartbeat has not expired, ordered by id
func (r *Repository) GetActiveWorkers(ctx context.Context) ([]webhook.WorkerHeartbeat, error) {
	active := []webhook.WorkerHeartbeat{}

	iter := r.client.Scan(ctx, 0, workerKeyPrefix+":*", workerScanCount).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired after the scan saw it
		}
		if err != nil {
			return nil, fmt.Errorf("reading worker heartbeat: %w", err)
		}

		var hb webhook.WorkerHeartbeat
		if err := json.Unmarshal(raw, &hb); err != nil {
			continue
		}
		active = append(active, hb)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning worker heartbeats: %w", err)
	}

	sort.Slice(active, func(i, j int) bool { return active[i].WorkerID < active[j].WorkerID })
	return active, nil
}
