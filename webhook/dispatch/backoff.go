package dispatch

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

/* Backoff computes retry delays: min(Base*2^(attempt-1), Max) plus jitter
 * Jitter stays below half of that value, so delays grow strictly until the cap
 */
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewBackoff creates a Backoff with its own random source
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{
		Base: base,
		Max:  max,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the wait before the retry that follows attempt (1-based)
func (b *Backoff) Delay(attempt int) time.Duration {
	raw := b.Ceiling(attempt)
	if raw <= 0 {
		return 0
	}
	return raw + b.jitter(raw/2)
}

// Ceiling returns the delay for attempt before jitter
func (b *Backoff) Ceiling(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	multiplier := math.Pow(2, float64(attempt-1))
	raw := float64(b.Base) * multiplier
	if b.Max > 0 && raw > float64(b.Max) {
		return b.Max
	}
	return time.Duration(raw)
}

func (b *Backoff) jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(b.rnd.Int63n(int64(max)))
}
