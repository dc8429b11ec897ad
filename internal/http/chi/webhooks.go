package chi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/assistant-gateway/webhook"
)

const retryAfterSeconds = "5"

// webhookResponse is the acknowledgement sent to a partner
type webhookResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Source    string `json:"source"`
	Duplicate bool   `json:"duplicate"`
}

// postWebhook handles POST /webhook/{source}
func postWebhook(service webhook.UseCase, recorder Recorder, maxBodyBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source := chi.URLParam(r, "source")
		label := "unknown"
		if src, err := webhook.ParseSource(source); err == nil {
			label = src.String()
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				recorder.RecordReceived(label, "too_large")
				writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds the size limit")
				return
			}
			recorder.RecordReceived(label, "invalid")
			writeError(w, http.StatusBadRequest, "validation_error", "failed to read request body")
			return
		}

		receipt, err := service.Receive(r.Context(), webhook.Request{
			Source:          source,
			Body:            body,
			SignatureHeader: signatureHeader(r),
			MessageID:       r.Header.Get("webhook-id"),
		})
		switch {
		case err == nil:
		case errors.Is(err, webhook.ErrBadSignature):
			recorder.RecordReceived(label, "bad_signature")
			writeRetryable(w, http.StatusUnauthorized, "bad_signature", "signature verification failed", false)
			return
		case errors.Is(err, webhook.ErrQueueFull):
			recorder.RecordReceived(label, "queue_full")
			w.Header().Set("Retry-After", retryAfterSeconds)
			writeRetryable(w, http.StatusTooManyRequests, "queue_full", "gateway is at capacity, retry later", true)
			return
		case errors.Is(err, webhook.ErrValidation):
			recorder.RecordReceived(label, "invalid")
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		default:
			recorder.RecordReceived(label, "error")
			writeError(w, http.StatusInternalServerError, "internal_error", "event could not be accepted")
			return
		}

		result := webhook.Accepted
		if receipt.Duplicate {
			result = webhook.Duplicate
		}
		recorder.RecordReceived(label, result.String())
		writeJSON(w, http.StatusAccepted, webhookResponse{
			Status:    "accepted",
			EventID:   receipt.EventID,
			Source:    receipt.Source.String(),
			Duplicate: receipt.Duplicate,
		})
	})
}

func signatureHeader(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("webhook-signature")); h != "" {
		return h
	}
	return strings.TrimSpace(r.Header.Get("X-Signature"))
}
