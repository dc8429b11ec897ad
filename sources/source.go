package sources

import (
	"fmt"
	"net/url"

	"github.com/marcelsud/assistant-gateway/policy"
	"github.com/marcelsud/assistant-gateway/webhook"
	"github.com/marcelsud/assistant-gateway/webhook/payload"
	"github.com/marcelsud/assistant-gateway/webhook/signature"
)

/* Subscription routes matching events of one source to a helper endpoint
 * Event types may be exact ("customs.cleared"), prefixed ("customs.*") or "*"
 */
type Subscription struct {
	Name           string
	EventTypes     []string
	TargetURL      string
	ExpectedStatus int // 200, 201, 202 or 204 (default: 202)
	Helper         policy.HelperID
}

// Validate checks if the subscription is valid
func (s *Subscription) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("subscription name cannot be empty")
	}
	if s.TargetURL == "" {
		return fmt.Errorf("target_url cannot be empty for subscription %s", s.Name)
	}
	u, err := url.Parse(s.TargetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("target_url must be an absolute http(s) URL for subscription %s", s.Name)
	}
	switch s.ExpectedStatus {
	case 200, 201, 202, 204:
	default:
		return fmt.Errorf("expected_status must be 200, 201, 202 or 204 for subscription %s (got %d)", s.Name, s.ExpectedStatus)
	}
	if len(s.EventTypes) == 0 {
		return fmt.Errorf("event_types cannot be empty for subscription %s", s.Name)
	}
	for _, eventType := range s.EventTypes {
		if err := payload.ValidateEventType(eventType); err != nil {
			return fmt.Errorf("invalid event_type '%s' for subscription %s: %w", eventType, s.Name, err)
		}
	}
	return nil
}

// Matches reports whether eventType is covered by one of the subscription patterns
func (s *Subscription) Matches(eventType string) bool {
	for _, pattern := range s.EventTypes {
		if payload.MatchEventType(pattern, eventType) {
			return true
		}
	}
	return false
}

/* Source describes one partner: the secrets it signs with and where its events go
 * Several secrets may be active while a partner rotates keys
 */
type Source struct {
	Source        webhook.Source
	Secrets       []signature.Secret
	Subscriptions []Subscription
}

// Validate checks if the source configuration is valid
func (s *Source) Validate() error {
	if err := s.Source.Validate(); err != nil {
		return err
	}
	if len(s.Secrets) == 0 {
		return fmt.Errorf("source %s needs at least one signing secret", s.Source)
	}
	seen := make(map[string]string)
	for i := range s.Subscriptions {
		sub := &s.Subscriptions[i]
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("source %s: %w", s.Source, err)
		}
		for _, pattern := range sub.EventTypes {
			if other, ok := seen[pattern]; ok {
				return fmt.Errorf("source %s: event_type '%s' is claimed by both %s and %s", s.Source, pattern, other, sub.Name)
			}
			seen[pattern] = sub.Name
		}
	}
	return nil
}
