package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcelsud/assistant-gateway/webhook"
	"github.com/redis/go-redis/v9"
)

/* Redis implementation of webhook.DeliveryLog and webhook.DeadLetterStore
 * Uses Lists for the append-only delivery history
 * Uses a Hash plus a Sorted Set for dead letters, newest first by score
 */

const (
	deliveryPrefix    = "delivery"          // List naming: delivery:{event_id}
	processedSuffix   = "processed"         // Marker naming: delivery:{event_id}:processed
	deadLetterHash    = "deadletters"       // Hash: event_id -> JSON
	deadLetterIndex   = "deadletters:index" // Sorted set: event_id scored by dead-lettered time (ms)
	deliveryRetention = 7 * 24 * time.Hour  // how long history and the dedupe marker are kept
)

type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository
func NewRepository(addr, password string, db int) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{
		client: client,
	}, nil
}

// NewRepositoryFromClient wraps an existing client without checking the connection
func NewRepositoryFromClient(client *redis.Client) *Repository {
	return &Repository{client: client}
}

// Append adds a delivery record; a processed outcome also sets the dedupe marker
func (r *Repository) Append(ctx context.Context, record webhook.DeliveryRecord) error {
	if record.EventID == "" {
		return fmt.Errorf("appending delivery record: event id is empty")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling delivery record: %w", err)
	}

	listKey := deliveryKey(record.EventID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, listKey, data)
		pipe.Expire(ctx, listKey, deliveryRetention)
		if record.Outcome == webhook.OutcomeProcessed {
			pipe.Set(ctx, processedKey(record.EventID), record.Timestamp.Unix(), deliveryRetention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending delivery record: %w", err)
	}
	return nil
}

// Processed reports whether eventID reached the processed outcome within the retention window
func (r *Repository) Processed(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, processedKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking processed marker: %w", err)
	}
	return n > 0, nil
}

// History returns the delivery records of eventID in append order
func (r *Repository) History(ctx context.Context, eventID string) ([]webhook.DeliveryRecord, error) {
	items, err := r.client.LRange(ctx, deliveryKey(eventID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading delivery history: %w", err)
	}

	records := make([]webhook.DeliveryRecord, 0, len(items))
	for _, item := range items {
		var rec webhook.DeliveryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshaling delivery record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Put stores a dead letter, replacing an earlier one for the same event
func (r *Repository) Put(ctx context.Context, dl webhook.DeadLetter) error {
	if dl.Event.ID == "" {
		return fmt.Errorf("storing dead letter: event id is empty")
	}
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshaling dead letter: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, deadLetterHash, dl.Event.ID, data)
		pipe.ZAdd(ctx, deadLetterIndex, redis.Z{
			Score:  float64(dl.DeadLetteredAt.UnixMilli()),
			Member: dl.Event.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing dead letter: %w", err)
	}
	return nil
}

// Get retrieves the dead letter of eventID
func (r *Repository) Get(ctx context.Context, eventID string) (webhook.DeadLetter, error) {
	data, err := r.client.HGet(ctx, deadLetterHash, eventID).Result()
	if errors.Is(err, redis.Nil) {
		return webhook.DeadLetter{}, fmt.Errorf("dead letter %s: %w", eventID, webhook.ErrNotFound)
	}
	if err != nil {
		return webhook.DeadLetter{}, fmt.Errorf("getting dead letter: %w", err)
	}

	var dl webhook.DeadLetter
	if err := json.Unmarshal([]byte(data), &dl); err != nil {
		return webhook.DeadLetter{}, fmt.Errorf("unmarshaling dead letter: %w", err)
	}
	return dl, nil
}

// List returns up to limit dead letters, most recent first; limit <= 0 means all
func (r *Repository) List(ctx context.Context, limit int) ([]webhook.DeadLetter, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.client.ZRevRange(ctx, deadLetterIndex, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}
	if len(ids) == 0 {
		return []webhook.DeadLetter{}, nil
	}

	values, err := r.client.HMGet(ctx, deadLetterHash, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading dead letters: %w", err)
	}

	out := make([]webhook.DeadLetter, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// removed between the two reads
			continue
		}
		var dl webhook.DeadLetter
		if err := json.Unmarshal([]byte(s), &dl); err != nil {
			return nil, fmt.Errorf("unmarshaling dead letter: %w", err)
		}
		out = append(out, dl)
	}
	return out, nil
}

// Remove deletes the dead letter of eventID
func (r *Repository) Remove(ctx context.Context, eventID string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.HDel(ctx, deadLetterHash, eventID)
		pipe.ZRem(ctx, deadLetterIndex, eventID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("removing dead letter: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("dead letter %s: %w", eventID, webhook.ErrNotFound)
	}
	return nil
}

// Count returns how many dead letters are stored
func (r *Repository) Count(ctx context.Context) (int64, error) {
	n, err := r.client.HLen(ctx, deadLetterHash).Result()
	if err != nil {
		return 0, fmt.Errorf("counting dead letters: %w", err)
	}
	return n, nil
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations
func (r *Repository) GetClient() *redis.Client {
	return r.client
}

// Helper functions

func deliveryKey(eventID string) string {
	return fmt.Sprintf("%s:%s", deliveryPrefix, eventID)
}

func processedKey(eventID string) string {
	return fmt.Sprintf("%s:%s:%s", deliveryPrefix, eventID, processedSuffix)
}
