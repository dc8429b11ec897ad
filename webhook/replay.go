package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Replayer puts dead-lettered events back on the queue
type Replayer struct {
	deadLetters DeadLetterStore
	queue       Enqueuer
	logger      zerolog.Logger
}

// NewReplayer creates a replayer over the dead-letter store and queue
func NewReplayer(deadLetters DeadLetterStore, queue Enqueuer, logger zerolog.Logger) *Replayer {
	return &Replayer{
		deadLetters: deadLetters,
		queue:       queue,
		logger:      logger.With().Str("component", "replayer").Logger(),
	}
}

// Replay re-enqueues a dead letter as a fresh entry with attempts reset.
// The dead letter is removed before the event is queued and put back if the
// queue refuses it; a failed replay therefore leaves exactly one dead letter.
func (r *Replayer) Replay(ctx context.Context, eventID string) (Receipt, error) {
	dl, err := r.deadLetters.Get(ctx, eventID)
	if err != nil {
		return Receipt{}, fmt.Errorf("loading dead letter: %w", err)
	}

	if err := r.deadLetters.Remove(ctx, eventID); err != nil {
		return Receipt{}, fmt.Errorf("removing dead letter: %w", err)
	}

	result, err := r.queue.Enqueue(ctx, dl.Event)
	if err != nil {
		if perr := r.deadLetters.Put(ctx, dl); perr != nil {
			r.logger.Error().Err(perr).Str("event_id", eventID).Msg("restoring dead letter after failed replay")
			return Receipt{}, errors.Join(fmt.Errorf("enqueuing replay: %w", err), fmt.Errorf("restoring dead letter: %w", perr))
		}
		return Receipt{}, fmt.Errorf("enqueuing replay: %w", err)
	}

	r.logger.Info().
		Str("event_id", eventID).
		Str("source", dl.Event.Source.String()).
		Str("failure_type", string(dl.FailureType)).
		Int("previous_attempts", dl.Attempts).
		Str("result", result.String()).
		Msg("dead letter replayed")

	return Receipt{
		EventID:   eventID,
		Source:    dl.Event.Source,
		Duplicate: result == Duplicate,
	}, nil
}
