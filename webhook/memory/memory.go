// Package memory keeps delivery records, dead letters and heartbeats in process memory.
// It is the default backend when no Redis address is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marcelsud/assistant-gateway/webhook"
)

// DefaultRetention matches the Redis backend: history and dedupe markers live 7 days
const DefaultRetention = 7 * 24 * time.Hour

// DeliveryLog is an in-memory webhook.DeliveryLog.
// Events whose last record is older than the retention window are pruned on Append.
type DeliveryLog struct {
	mu        sync.RWMutex
	records   map[string][]webhook.DeliveryRecord
	processed map[string]struct{}
	lastSeen  map[string]time.Time
	retention time.Duration
	nextSweep time.Time
	now       func() time.Time
}

// NewDeliveryLog creates an empty delivery log with DefaultRetention
func NewDeliveryLog() *DeliveryLog {
	return NewDeliveryLogWithRetention(DefaultRetention)
}

// NewDeliveryLogWithRetention creates an empty delivery log keeping events for retention
func NewDeliveryLogWithRetention(retention time.Duration) *DeliveryLog {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &DeliveryLog{
		records:   make(map[string][]webhook.DeliveryRecord),
		processed: make(map[string]struct{}),
		lastSeen:  make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

// Append adds a record; a processed outcome marks the event as done for dedupe
func (l *DeliveryLog) Append(ctx context.Context, record webhook.DeliveryRecord) error {
	if record.EventID == "" {
		return fmt.Errorf("appending delivery record: event id is empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	l.records[record.EventID] = append(l.records[record.EventID], record)
	l.lastSeen[record.EventID] = now
	if record.Outcome == webhook.OutcomeProcessed {
		l.processed[record.EventID] = struct{}{}
	}
	return nil
}

// sweep drops expired events; it runs at most once per min(retention, 1m)
func (l *DeliveryLog) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	l.nextSweep = now.Add(min(l.retention, time.Minute))
	cutoff := now.Add(-l.retention)
	for id, seen := range l.lastSeen {
		if seen.Before(cutoff) {
			delete(l.records, id)
			delete(l.processed, id)
			delete(l.lastSeen, id)
		}
	}
}

// Processed reports whether eventID has a processed record
func (l *DeliveryLog) Processed(ctx context.Context, eventID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.processed[eventID]
	return ok, nil
}

// History returns the records of eventID in append order
func (l *DeliveryLog) History(ctx context.Context, eventID string) ([]webhook.DeliveryRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]webhook.DeliveryRecord, len(l.records[eventID]))
	copy(out, l.records[eventID])
	return out, nil
}

// DeadLetterStore is an in-memory webhook.DeadLetterStore
type DeadLetterStore struct {
	mu      sync.RWMutex
	letters map[string]webhook.DeadLetter
}

// NewDeadLetterStore creates an empty store
func NewDeadLetterStore() *DeadLetterStore {
	return &DeadLetterStore{
		letters: make(map[string]webhook.DeadLetter),
	}
}

// Put stores dl, replacing an earlier dead letter for the same event
func (s *DeadLetterStore) Put(ctx context.Context, dl webhook.DeadLetter) error {
	if dl.Event.ID == "" {
		return fmt.Errorf("storing dead letter: event id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters[dl.Event.ID] = dl
	return nil
}

// Get returns the dead letter for eventID
func (s *DeadLetterStore) Get(ctx context.Context, eventID string) (webhook.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dl, ok := s.letters[eventID]
	if !ok {
		return webhook.DeadLetter{}, fmt.Errorf("dead letter %s: %w", eventID, webhook.ErrNotFound)
	}
	return dl, nil
}

// List returns up to limit dead letters, most recent first; limit <= 0 means all
func (s *DeadLetterStore) List(ctx context.Context, limit int) ([]webhook.DeadLetter, error) {
	s.mu.RLock()
	out := make([]webhook.DeadLetter, 0, len(s.letters))
	for _, dl := range s.letters {
		out = append(out, dl)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].DeadLetteredAt.After(out[j].DeadLetteredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Remove deletes the dead letter for eventID
func (s *DeadLetterStore) Remove(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.letters[eventID]; !ok {
		return fmt.Errorf("dead letter %s: %w", eventID, webhook.ErrNotFound)
	}
	delete(s.letters, eventID)
	return nil
}

// Count returns how many dead letters are stored
func (s *DeadLetterStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.letters)), nil
}

// HeartbeatStore tracks dispatcher workers in memory with the same TTL rule as Redis
type HeartbeatStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	workers map[string]webhook.WorkerHeartbeat
	now     func() time.Time
}

// NewHeartbeatStore creates a store where workers expire after ttl without a beat
func NewHeartbeatStore(ttl time.Duration) *HeartbeatStore {
	return &HeartbeatStore{
		ttl:     ttl,
		workers: make(map[string]webhook.WorkerHeartbeat),
		now:     time.Now,
	}
}

// SetWorkerHeartbeat records a beat for workerID
func (h *HeartbeatStore) SetWorkerHeartbeat(ctx context.Context, workerID, status string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.workers[workerID] = webhook.WorkerHeartbeat{
		WorkerID:      workerID,
		Status:        status,
		LastHeartbeat: h.now(),
	}
	return nil
}

// GetActiveWorkers returns workers that beat within the TTL, ordered by id
func (h *HeartbeatStore) GetActiveWorkers(ctx context.Context) ([]webhook.WorkerHeartbeat, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-h.ttl)
	out := make([]webhook.WorkerHeartbeat, 0, len(h.workers))
	for id, hb := range h.workers {
		if hb.LastHeartbeat.Before(cutoff) {
			delete(h.workers, id)
			continue
		}
		out = append(out, hb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}
