package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/marcelsud/assistant-gateway/webhook"
	"github.com/marcelsud/assistant-gateway/webhook/payload"
)

// Consumer handles one event. Returning an error marked with Fatal dead-letters the event,
// any other error schedules a retry.
type Consumer interface {
	Consume(ctx context.Context, ev webhook.Event) error
}

// ConsumerFunc adapts a function to Consumer
type ConsumerFunc func(ctx context.Context, ev webhook.Event) error

// Consume calls f
func (f ConsumerFunc) Consume(ctx context.Context, ev webhook.Event) error {
	return f(ctx, ev)
}

/* Registry maps (source, event type pattern) to consumers
 * Lookup prefers the exact event type, then the longest "prefix.*" pattern, then "*"
 */
type Registry struct {
	mu        sync.RWMutex
	consumers map[webhook.Source]map[string]Consumer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		consumers: make(map[webhook.Source]map[string]Consumer),
	}
}

// Register binds c to events of source whose type matches pattern
func (r *Registry) Register(source webhook.Source, pattern string, c Consumer) error {
	if err := source.Validate(); err != nil {
		return fmt.Errorf("registering consumer: %w", err)
	}
	if err := payload.ValidateEventType(pattern); err != nil {
		return fmt.Errorf("registering consumer: %w", err)
	}
	if c == nil {
		return fmt.Errorf("registering consumer: consumer for %s %q is nil", source, pattern)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	patterns, ok := r.consumers[source]
	if !ok {
		patterns = make(map[string]Consumer)
		r.consumers[source] = patterns
	}
	if _, exists := patterns[pattern]; exists {
		return fmt.Errorf("registering consumer: %s %q is already registered", source, pattern)
	}
	patterns[pattern] = c
	return nil
}

// Lookup returns the consumer for an event, if any
func (r *Registry) Lookup(source webhook.Source, eventType string) (Consumer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patterns, ok := r.consumers[source]
	if !ok {
		return nil, false
	}
	if c, ok := patterns[eventType]; ok {
		return c, true
	}

	prefix := eventType
	for {
		i := strings.LastIndex(prefix, ".")
		if i < 0 {
			break
		}
		prefix = prefix[:i]
		if c, ok := patterns[prefix+".*"]; ok {
			return c, true
		}
	}

	c, ok := patterns["*"]
	return c, ok
}

// Patterns lists the registered patterns of source, sorted
func (r *Registry) Patterns(source webhook.Source) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.consumers[source]))
	for p := range r.consumers[source] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
