package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcelsud/assistant-gateway/webhook"
)

// ErrNotInFlight is returned when a transition targets a key with no entry being dispatched
var ErrNotInFlight = errors.New("no entry in flight for key")

/* Queue is a bounded buffer of verified events, ordered per correlation key
 * One mutex guards all state. Enqueue never blocks: a full queue fails fast
 * Only the head of a key is handed out, so a key is dispatched strictly in receipt order
 */
type Queue struct {
	mu       sync.Mutex
	capacity int
	size     int
	inflight int
	lanes    map[string]*lane
	order    []string
	ids      map[string]struct{}

	history webhook.DeliveryReader
	notify  chan struct{}
	now     func() time.Time
}

type lane struct {
	entries []*webhook.Entry
	busy    bool
}

// Option configures a Queue
type Option func(*Queue)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// New creates a queue holding at most capacity entries.
// history is consulted on Enqueue to short-circuit redeliveries; it may be nil.
func New(capacity int, history webhook.DeliveryReader, opts ...Option) (*Queue, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("queue capacity must be at least 1 (got %d)", capacity)
	}
	q := &Queue{
		capacity: capacity,
		lanes:    make(map[string]*lane),
		ids:      make(map[string]struct{}),
		history:  history,
		notify:   make(chan struct{}, 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue adds ev behind any earlier event with the same correlation key.
// An id that was already processed, or is still queued, is reported as Duplicate.
// A full queue returns webhook.ErrQueueFull without evicting anything.
func (q *Queue) Enqueue(ctx context.Context, ev webhook.Event) (webhook.EnqueueResult, error) {
	if ev.ID == "" || ev.CorrelationKey == "" {
		return 0, fmt.Errorf("%w: id and correlation key are required", webhook.ErrValidation)
	}

	if q.history != nil {
		done, err := q.history.Processed(ctx, ev.ID)
		if err != nil {
			return 0, fmt.Errorf("checking delivery history: %w", err)
		}
		if done {
			return webhook.Duplicate, nil
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, queued := q.ids[ev.ID]; queued {
		return webhook.Duplicate, nil
	}
	if q.size >= q.capacity {
		return 0, webhook.ErrQueueFull
	}

	l, ok := q.lanes[ev.CorrelationKey]
	if !ok {
		l = &lane{}
		q.lanes[ev.CorrelationKey] = l
		q.order = append(q.order, ev.CorrelationKey)
	}
	now := q.now()
	l.entries = append(l.entries, &webhook.Entry{
		Event:          ev,
		State:          webhook.Pending,
		EnqueuedAt:     now,
		NextEligibleAt: now,
	})
	q.ids[ev.ID] = struct{}{}
	q.size++
	q.signal()

	return webhook.Accepted, nil
}

// Dequeue hands out the head entry of key if it is eligible and nothing for key is in flight
func (q *Queue) Dequeue(correlationKey string) (webhook.Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.take(correlationKey, q.now())
}

// Next blocks until some key has an eligible head entry, then marks it in flight
func (q *Queue) Next(ctx context.Context) (webhook.Entry, error) {
	for {
		entry, ok, wait := q.poll()
		if ok {
			return entry, nil
		}

		var timer *time.Timer
		var fire <-chan time.Time
		if wait > 0 {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return webhook.Entry{}, ctx.Err()
		case <-q.notify:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// poll returns an eligible entry, or how long until the earliest retry becomes eligible (0 = none)
func (q *Queue) poll() (webhook.Entry, bool, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var wait time.Duration
	for _, key := range q.order {
		l := q.lanes[key]
		if l.busy {
			continue
		}
		if d := l.entries[0].NextEligibleAt.Sub(now); d > 0 {
			if wait == 0 || d < wait {
				wait = d
			}
			continue
		}
		entry, ok := q.take(key, now)
		if ok && q.size > q.inflight {
			// more work may be ready; wake another worker
			q.signal()
		}
		return entry, ok, 0
	}
	return webhook.Entry{}, false, wait
}

func (q *Queue) take(key string, now time.Time) (webhook.Entry, bool) {
	l, ok := q.lanes[key]
	if !ok || l.busy || len(l.entries) == 0 {
		return webhook.Entry{}, false
	}
	head := l.entries[0]
	if head.NextEligibleAt.After(now) {
		return webhook.Entry{}, false
	}
	head.State = webhook.InFlight
	l.busy = true
	q.inflight++
	q.rotate(key)
	return *head, true
}

// Ack records a successful attempt and removes the head entry of key
func (q *Queue) Ack(correlationKey string) (webhook.Entry, error) {
	return q.finish(correlationKey, webhook.Done)
}

// DeadLetter records a final failed attempt and removes the head entry of key
func (q *Queue) DeadLetter(correlationKey string) (webhook.Entry, error) {
	return q.finish(correlationKey, webhook.DeadLettered)
}

// Retry records a failed attempt and keeps the entry at the head of its key until next
func (q *Queue) Retry(correlationKey string, next time.Time) (webhook.Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, err := q.busyLane(correlationKey)
	if err != nil {
		return webhook.Entry{}, err
	}
	head := l.entries[0]
	head.Attempts++
	head.State = webhook.Pending
	head.NextEligibleAt = next
	l.busy = false
	q.inflight--
	q.signal()

	return *head, nil
}

func (q *Queue) finish(key string, state webhook.State) (webhook.Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, err := q.busyLane(key)
	if err != nil {
		return webhook.Entry{}, err
	}
	head := l.entries[0]
	head.Attempts++
	head.State = state

	l.entries[0] = nil
	l.entries = l.entries[1:]
	l.busy = false
	q.inflight--
	q.size--
	delete(q.ids, head.Event.ID)
	if len(l.entries) == 0 {
		delete(q.lanes, key)
		q.removeKey(key)
	}
	q.signal()

	return *head, nil
}

func (q *Queue) busyLane(key string) (*lane, error) {
	l, ok := q.lanes[key]
	if !ok || !l.busy {
		return nil, fmt.Errorf("%w: %s", ErrNotInFlight, key)
	}
	return l, nil
}

// rotate moves key to the back so busy keys do not starve the others
func (q *Queue) rotate(key string) {
	q.removeKey(key)
	q.order = append(q.order, key)
}

func (q *Queue) removeKey(key string) {
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Depth returns the number of queued entries, in flight included
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// InFlight returns the number of entries currently being dispatched
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight
}

// Capacity returns the configured bound
func (q *Queue) Capacity() int {
	return q.capacity
}

// Pending returns copies of the entries queued for key, head first
func (q *Queue) Pending(correlationKey string) []webhook.Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.lanes[correlationKey]
	if !ok {
		return nil
	}
	out := make([]webhook.Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	return out
}
