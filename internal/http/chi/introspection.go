package chi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/assistant-gateway/metrics"
	"github.com/marcelsud/assistant-gateway/webhook"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

type healthResponse struct {
	Status        string `json:"status"`
	QueueDepth    int64  `json:"queue_depth"`
	QueueCapacity int64  `json:"queue_capacity"`
	InFlight      int64  `json:"in_flight"`
	DeadLetters   int64  `json:"dead_letters"`
	Workers       int    `json:"workers"`
}

type deadLetterResponse struct {
	EventID        string    `json:"event_id"`
	Source         string    `json:"source"`
	EventType      string    `json:"event_type"`
	CorrelationKey string    `json:"correlation_key"`
	Attempts       int       `json:"attempts"`
	FailureType    string    `json:"failure_type"`
	LastError      string    `json:"last_error"`
	FirstFailedAt  time.Time `json:"first_failed_at"`
	DeadLetteredAt time.Time `json:"dead_lettered_at"`
}

type deadLettersResponse struct {
	DeadLetters []deadLetterResponse `json:"dead_letters"`
	Count       int                  `json:"count"`
}

type deliveriesResponse struct {
	EventID string                   `json:"event_id"`
	Records []webhook.DeliveryRecord `json:"records"`
}

// getHealth handles GET /health; a failing store reports degraded with 503
func getHealth(collector metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := collector.Collect(r.Context())
		resp := healthResponse{
			Status:        "ok",
			QueueDepth:    snap.QueueDepth,
			QueueCapacity: snap.QueueCapacity,
			InFlight:      snap.InFlight,
			DeadLetters:   snap.DeadLetters,
			Workers:       len(snap.Workers),
		}
		if err != nil {
			resp.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// getDeadLetters handles GET /dead-letters?limit=n
func getDeadLetters(store webhook.DeadLetterStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := defaultDeadLetterLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
				return
			}
			limit = min(n, maxDeadLetterLimit)
		}

		letters, err := store.List(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "dead letters could not be listed")
			return
		}

		resp := deadLettersResponse{DeadLetters: make([]deadLetterResponse, 0, len(letters))}
		for _, dl := range letters {
			resp.DeadLetters = append(resp.DeadLetters, deadLetterResponse{
				EventID:        dl.Event.ID,
				Source:         dl.Event.Source.String(),
				EventType:      dl.Event.EventType,
				CorrelationKey: dl.Event.CorrelationKey,
				Attempts:       dl.Attempts,
				FailureType:    string(dl.FailureType),
				LastError:      dl.LastError,
				FirstFailedAt:  dl.FirstFailedAt,
				DeadLetteredAt: dl.DeadLetteredAt,
			})
		}
		resp.Count = len(resp.DeadLetters)
		writeJSON(w, http.StatusOK, resp)
	})
}

// postReplay handles POST /dead-letters/{event_id}/replay
func postReplay(replayer Replayer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "event_id")

		receipt, err := replayer.Replay(r.Context(), eventID)
		switch {
		case err == nil:
		case errors.Is(err, webhook.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "no dead letter for event "+eventID)
			return
		case errors.Is(err, webhook.ErrQueueFull):
			w.Header().Set("Retry-After", retryAfterSeconds)
			writeRetryable(w, http.StatusTooManyRequests, "queue_full", "gateway is at capacity, retry later", true)
			return
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "dead letter could not be replayed")
			return
		}

		writeJSON(w, http.StatusAccepted, webhookResponse{
			Status:    "accepted",
			EventID:   receipt.EventID,
			Source:    receipt.Source.String(),
			Duplicate: receipt.Duplicate,
		})
	})
}

// getDeliveries handles GET /deliveries/{event_id}
func getDeliveries(deliveries webhook.DeliveryReader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "event_id")

		records, err := deliveries.History(r.Context(), eventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "delivery history could not be read")
			return
		}
		if len(records) == 0 {
			writeError(w, http.StatusNotFound, "not_found", "no deliveries recorded for event "+eventID)
			return
		}
		writeJSON(w, http.StatusOK, deliveriesResponse{EventID: eventID, Records: records})
	})
}
