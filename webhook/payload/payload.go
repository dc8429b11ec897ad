package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// eventTypePattern validates event types: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var eventTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// Envelope holds the fields every partner payload must carry
// Source-specific fields stay in the raw body and are not interpreted here
type Envelope struct {
	// ID is the sender's event id; "event_id" is accepted as an alias
	ID string `json:"id"`

	// EventType is a full-stop delimited type, e.g. "cte.issued", "container.gate_in"
	EventType string `json:"event_type"`

	// CorrelationKey groups related events for ordering, usually an order reference
	CorrelationKey string `json:"correlation_key"`

	// Timestamp is when the event occurred at the partner
	Timestamp time.Time `json:"timestamp"`
}

// Validate validates the envelope fields
func (e Envelope) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}

	if !eventTypePattern.MatchString(e.EventType) {
		return fmt.Errorf("event_type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", e.EventType)
	}

	if strings.TrimSpace(e.CorrelationKey) == "" {
		return fmt.Errorf("correlation_key is required")
	}

	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	return nil
}

// UnmarshalJSON parses the JSON-encoded data and stores the result
// The timestamp may be RFC 3339 text or unix seconds
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type Alias Envelope
	aux := &struct {
		EventID   string          `json:"event_id"`
		Timestamp json.RawMessage `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshaling payload: %w", err)
	}

	if e.ID == "" {
		e.ID = aux.EventID
	}

	ts, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	e.Timestamp = ts

	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			// Try RFC3339 without nano precision
			ts, err = time.Parse(time.RFC3339, s)
			if err != nil {
				return time.Time{}, err
			}
		}
		return ts, nil
	}

	secs, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be RFC 3339 or unix seconds: %s", raw)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// Parse parses a JSON payload into an Envelope
func Parse(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshaling payload: %w", err)
	}

	if err := env.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating payload: %w", err)
	}

	return env, nil
}

// MatchEventType checks if eventType matches a subscription pattern
// Supports exact matching, "*" and prefix matching (e.g., "cte.*" matches "cte.issued")
func MatchEventType(pattern, eventType string) bool {
	if pattern == "*" || pattern == eventType {
		return true
	}

	if len(pattern) > 2 && pattern[len(pattern)-2:] == ".*" {
		prefix := pattern[:len(pattern)-2]
		if len(eventType) > len(prefix) && eventType[:len(prefix)] == prefix && eventType[len(prefix)] == '.' {
			return true
		}
	}

	return false
}

// ValidateEventType validates an event type subscription pattern
func ValidateEventType(eventType string) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}

	if eventType == "*" {
		return nil
	}

	// Allow wildcard suffix for filtering
	if len(eventType) > 2 && eventType[len(eventType)-2:] == ".*" {
		eventType = eventType[:len(eventType)-2]
	}

	if !eventTypePattern.MatchString(eventType) {
		return fmt.Errorf("event type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", eventType)
	}

	return nil
}
