package webhook

import "time"

/* Event represents a verified partner notification
 * Uses value semantics as it represents data, not behavior
 * Built once at the HTTP boundary after the signature check and never mutated
 */
type Event struct {
	ID             string    `json:"id"`
	Source         Source    `json:"source"`
	CorrelationKey string    `json:"correlation_key"`
	EventType      string    `json:"event_type"`
	Payload        []byte    `json:"payload"`
	Signature      []byte    `json:"signature,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

// PayloadCopy returns a copy of the payload that consumers may keep
func (e Event) PayloadCopy() []byte {
	if e.Payload == nil {
		return nil
	}
	out := make([]byte, len(e.Payload))
	copy(out, e.Payload)
	return out
}

/* Entry wraps an Event while it sits in the queue
 * Only the queue changes these fields; callers receive copies
 */
type Entry struct {
	Event          Event
	Attempts       int
	NextEligibleAt time.Time
	EnqueuedAt     time.Time
	State          State
}
