package chi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/assistant-gateway/webhook"
	"github.com/marcelsud/assistant-gateway/webhook/dispatch"
	"github.com/marcelsud/assistant-gateway/webhook/mocks"
)

func customsEvent(id, note string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"event_type":"customs.cleared","correlation_key":"CTE-2024-001","timestamp":"2024-05-01T10:00:00Z","note":%q}`,
		id, note))
}

func TestPostWebhook(t *testing.T) {
	t.Run("signed event is accepted", func(t *testing.T) {
		f := newFixture(t, 10)
		rec := &recorder{}
		f.deps.Recorder = rec
		body := customsEvent("evt-1", "first")

		w := do(t, f.handler(), http.MethodPost, "/webhook/customs", body, map[string]string{
			"webhook-signature": f.sign(body),
		})

		assert.Equal(t, http.StatusAccepted, w.Code)
		resp := decode[webhookResponse](t, w)
		assert.Equal(t, webhookResponse{Status: "accepted", EventID: "evt-1", Source: "customs"}, resp)
		assert.Equal(t, 1, f.queue.Depth())
		assert.Equal(t, []string{"customs/accepted"}, rec.received)
	})

	t.Run("X-Signature and a matching webhook-id are honoured", func(t *testing.T) {
		f := newFixture(t, 10)
		body := customsEvent("evt-body", "first")

		w := do(t, f.handler(), http.MethodPost, "/webhook/customs", body, map[string]string{
			"X-Signature": f.sign(body),
			"webhook-id":  "evt-body",
		})

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "evt-body", decode[webhookResponse](t, w).EventID)
	})

	t.Run("captured delivery cannot be replayed under a new webhook-id", func(t *testing.T) {
		f := newFixture(t, 10)
		h := f.handler()
		body := customsEvent("evt-1", "first")
		sig := f.sign(body)

		w := do(t, h, http.MethodPost, "/webhook/customs", body, map[string]string{"webhook-signature": sig})
		require.Equal(t, http.StatusAccepted, w.Code)

		for _, msgID := range []string{"replayed-1", "replayed-2"} {
			w = do(t, h, http.MethodPost, "/webhook/customs", body, map[string]string{
				"webhook-signature": sig,
				"webhook-id":        msgID,
			})
			assert.Equal(t, http.StatusBadRequest, w.Code, msgID)
			assert.Equal(t, "validation_error", decode[errorResponse](t, w).Reason)
		}

		w = do(t, h, http.MethodPost, "/webhook/customs", body, map[string]string{
			"webhook-signature": sig,
			"webhook-id":        "evt-1",
		})
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.True(t, decode[webhookResponse](t, w).Duplicate)
		assert.Equal(t, 1, f.queue.Depth())
	})

	t.Run("tampered signature is rejected before the queue", func(t *testing.T) {
		f := newFixture(t, 10)
		rec := &recorder{}
		f.deps.Recorder = rec
		signed := customsEvent("evt-1", "first")
		tampered := customsEvent("evt-1", "forged")

		w := do(t, f.handler(), http.MethodPost, "/webhook/customs", tampered, map[string]string{
			"webhook-signature": f.sign(signed),
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decode[errorResponse](t, w)
		assert.Equal(t, "bad_signature", resp.Reason)
		require.NotNil(t, resp.Retryable)
		assert.False(t, *resp.Retryable)
		assert.Equal(t, 0, f.queue.Depth())
		count, err := f.deadLetters.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Equal(t, []string{"customs/bad_signature"}, rec.received)
	})

	t.Run("unknown source is rejected as unsigned", func(t *testing.T) {
		f := newFixture(t, 10)
		rec := &recorder{}
		f.deps.Recorder = rec
		body := customsEvent("evt-1", "first")

		w := do(t, f.handler(), http.MethodPost, "/webhook/pirates", body, map[string]string{
			"webhook-signature": f.sign(body),
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, []string{"unknown/bad_signature"}, rec.received)
	})

	t.Run("full queue answers 429 with Retry-After", func(t *testing.T) {
		f := newFixture(t, 1)
		h := f.handler()
		first := customsEvent("evt-1", "first")
		second := customsEvent("evt-2", "second")

		w := do(t, h, http.MethodPost, "/webhook/customs", first, map[string]string{"webhook-signature": f.sign(first)})
		require.Equal(t, http.StatusAccepted, w.Code)
		w = do(t, h, http.MethodPost, "/webhook/customs", second, map[string]string{"webhook-signature": f.sign(second)})

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, retryAfterSeconds, w.Header().Get("Retry-After"))
		resp := decode[errorResponse](t, w)
		assert.Equal(t, "queue_full", resp.Reason)
		require.NotNil(t, resp.Retryable)
		assert.True(t, *resp.Retryable)
		assert.Equal(t, 1, f.queue.Depth())
	})

	t.Run("malformed body after verification", func(t *testing.T) {
		f := newFixture(t, 10)
		body := []byte(`{"id":"evt-1"}`)

		w := do(t, f.handler(), http.MethodPost, "/webhook/customs", body, map[string]string{"webhook-signature": f.sign(body)})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decode[errorResponse](t, w).Reason)
	})

	t.Run("oversized body", func(t *testing.T) {
		f := newFixture(t, 10)
		f.deps.MaxBodyBytes = 64
		body := []byte(`{"id":"evt-1","padding":"` + strings.Repeat("x", 128) + `"}`)

		w := do(t, f.handler(), http.MethodPost, "/webhook/customs", body, map[string]string{"webhook-signature": f.sign(body)})

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "payload_too_large", decode[errorResponse](t, w).Reason)
	})
}

func TestPostWebhook_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"bad signature", webhook.ErrBadSignature, http.StatusUnauthorized, "bad_signature"},
		{"queue full", fmt.Errorf("enqueuing event: %w", webhook.ErrQueueFull), http.StatusTooManyRequests, "queue_full"},
		{"validation", fmt.Errorf("%w: missing correlation_key", webhook.ErrValidation), http.StatusBadRequest, "validation_error"},
		{"anything else", errors.New("redis: connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)
			s := mocks.NewUseCase(t)
			s.On("Receive", mock.Anything, mock.MatchedBy(func(req webhook.Request) bool {
				return req.Source == "carrier" && req.SignatureHeader == "v1,abc" && req.MessageID == "msg-1"
			})).Return(webhook.Receipt{}, tt.err)
			f.deps.Webhooks = s

			w := do(t, f.handler(), http.MethodPost, "/webhook/carrier", []byte(`{}`), map[string]string{
				"webhook-signature": "v1,abc",
				"webhook-id":        "msg-1",
			})

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode[errorResponse](t, w)
			assert.Equal(t, tt.wantReason, resp.Reason)
			assert.NotContains(t, resp.Message, "redis")
		})
	}
}

func TestPostWebhook_RedeliveryAfterDone(t *testing.T) {
	f := newFixture(t, 10)
	var calls atomic.Int32
	registry := dispatch.NewRegistry()
	require.NoError(t, registry.Register(webhook.Customs, "customs.*", dispatch.ConsumerFunc(
		func(ctx context.Context, ev webhook.Event) error {
			calls.Add(1)
			return nil
		})))
	d, err := dispatch.New(dispatch.Config{
		Workers:         1,
		MaxAttempts:     3,
		BaseBackoff:     10 * time.Millisecond,
		MaxBackoff:      100 * time.Millisecond,
		ConsumerTimeout: time.Second,
	}, dispatch.Dependencies{
		Queue:       f.queue,
		Registry:    registry,
		Deliveries:  f.deliveries,
		DeadLetters: f.deadLetters,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)
	h := f.handler()

	first := customsEvent("evt-dup", "first")
	w := do(t, h, http.MethodPost, "/webhook/customs", first, map[string]string{"webhook-signature": f.sign(first)})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool {
		done, err := f.deliveries.Processed(context.Background(), "evt-dup")
		return err == nil && done
	}, 2*time.Second, 10*time.Millisecond)

	second := customsEvent("evt-dup", "different bytes")
	w = do(t, h, http.MethodPost, "/webhook/customs", second, map[string]string{"webhook-signature": f.sign(second)})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, decode[webhookResponse](t, w).Duplicate)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, f.queue.Depth())
}
