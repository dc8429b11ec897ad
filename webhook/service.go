package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/assistant-gateway/webhook/payload"
)

/* Service represents the ingestion use case
 * Uses pointer semantics as it's an API, not data
 * Follows: Received -> SignatureChecked -> Rejected:BadSignature | Enqueued | Rejected:QueueFull
 */

// UseCase defines the business operations for webhook ingestion
type UseCase interface {
	Receive(ctx context.Context, req Request) (Receipt, error)
}

// Verifier checks a partner signature over the raw body
type Verifier interface {
	Verify(source Source, rawBody []byte, signatureHeader string) bool
}

// Enqueuer accepts verified events for dispatch
type Enqueuer interface {
	Enqueue(ctx context.Context, ev Event) (EnqueueResult, error)
}

// Request is an inbound delivery exactly as the sender made it
type Request struct {
	Source          string
	Body            []byte
	SignatureHeader string
	MessageID       string // webhook-id header; when set it must equal the payload id
}

// Receipt tells the sender what happened to its event
type Receipt struct {
	EventID   string
	Source    Source
	Duplicate bool
}

type Service struct {
	verifier Verifier
	queue    Enqueuer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a new webhook service with dependency injection
func NewService(verifier Verifier, queue Enqueuer, logger zerolog.Logger) *Service {
	return &Service{
		verifier: verifier,
		queue:    queue,
		logger:   logger.With().Str("component", "webhook_service").Logger(),
		now:      time.Now,
	}
}

// Receive verifies the signature, then parses and enqueues the event.
// The body is not parsed until the signature is valid.
func (s *Service) Receive(ctx context.Context, req Request) (Receipt, error) {
	src, err := ParseSource(req.Source)
	if err != nil {
		s.logger.Warn().Str("source", req.Source).Msg("webhook from unknown source rejected")
		return Receipt{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if !s.verifier.Verify(src, req.Body, req.SignatureHeader) {
		s.logger.Warn().
			Str("source", src.String()).
			Str("message_id", req.MessageID).
			Bool("signature_present", req.SignatureHeader != "").
			Msg("webhook signature rejected")
		return Receipt{}, ErrBadSignature
	}

	env, err := payload.Parse(req.Body)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// the id drives dedupe, so it must come from the signed body
	id := strings.TrimSpace(env.ID)
	if id == "" {
		return Receipt{}, fmt.Errorf("%w: event id is required (id or event_id field)", ErrValidation)
	}
	if msgID := strings.TrimSpace(req.MessageID); msgID != "" && msgID != id {
		s.logger.Warn().
			Str("source", src.String()).
			Str("event_id", id).
			Str("message_id", msgID).
			Msg("webhook-id header does not match payload id")
		return Receipt{}, fmt.Errorf("%w: webhook-id header does not match payload id", ErrValidation)
	}

	ev := Event{
		ID:             id,
		Source:         src,
		CorrelationKey: env.CorrelationKey,
		EventType:      env.EventType,
		Payload:        append([]byte(nil), req.Body...),
		Signature:      []byte(req.SignatureHeader),
		ReceivedAt:     s.now(),
	}

	result, err := s.queue.Enqueue(ctx, ev)
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			s.logger.Warn().Str("source", src.String()).Str("event_id", id).Msg("queue full, webhook rejected")
		}
		return Receipt{}, fmt.Errorf("enqueuing event: %w", err)
	}

	s.logger.Debug().
		Str("source", src.String()).
		Str("event_id", id).
		Str("event_type", ev.EventType).
		Str("result", result.String()).
		Msg("webhook received")

	return Receipt{
		EventID:   id,
		Source:    src,
		Duplicate: result == Duplicate,
	}, nil
}
