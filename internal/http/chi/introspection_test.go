package chi

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/assistant-gateway/metrics"
	"github.com/marcelsud/assistant-gateway/webhook"
)

type failingCollector struct{}

func (failingCollector) Collect(ctx context.Context) (metrics.Snapshot, error) {
	return metrics.Snapshot{QueueCapacity: 10}, errors.New("redis down")
}

func deadLetter(id string, at time.Time) webhook.DeadLetter {
	return webhook.DeadLetter{
		Event: webhook.Event{
			ID:             id,
			Source:         webhook.Port,
			CorrelationKey: "BL-77",
			EventType:      "port.berthed",
			Payload:        []byte(`{}`),
		},
		Attempts:       3,
		FailureType:    webhook.FailureExhausted,
		LastError:      "status 503",
		FirstFailedAt:  at.Add(-time.Minute),
		DeadLetteredAt: at,
	}
}

func TestGetHealth(t *testing.T) {
	t.Run("reports queue and store figures", func(t *testing.T) {
		f := newFixture(t, 10)
		body := customsEvent("evt-1", "first")
		h := f.handler()
		require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/webhook/customs", body,
			map[string]string{"webhook-signature": f.sign(body)}).Code)
		require.NoError(t, f.deadLetters.Put(context.Background(), deadLetter("evt-dead", time.Now())))

		w := do(t, h, http.MethodGet, "/health", nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, healthResponse{
			Status:        "ok",
			QueueDepth:    1,
			QueueCapacity: 10,
			DeadLetters:   1,
		}, decode[healthResponse](t, w))
	})

	t.Run("degraded when a store fails", func(t *testing.T) {
		f := newFixture(t, 10)
		f.deps.Collector = failingCollector{}

		w := do(t, f.handler(), http.MethodGet, "/health", nil, nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "degraded", decode[healthResponse](t, w).Status)
	})
}

func TestGetDeadLetters(t *testing.T) {
	f := newFixture(t, 10)
	now := time.Now()
	for i, id := range []string{"evt-a", "evt-b", "evt-c"} {
		require.NoError(t, f.deadLetters.Put(context.Background(), deadLetter(id, now.Add(time.Duration(i)*time.Second))))
	}
	h := f.handler()

	t.Run("most recent first, limited", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/dead-letters?limit=2", nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode[deadLettersResponse](t, w)
		require.Equal(t, 2, resp.Count)
		assert.Equal(t, "evt-c", resp.DeadLetters[0].EventID)
		assert.Equal(t, "evt-b", resp.DeadLetters[1].EventID)
		assert.Equal(t, "port", resp.DeadLetters[0].Source)
		assert.Equal(t, "exhausted", resp.DeadLetters[0].FailureType)
		assert.Equal(t, 3, resp.DeadLetters[0].Attempts)
	})

	t.Run("default limit", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/dead-letters", nil, nil)

		assert.Equal(t, 3, decode[deadLettersResponse](t, w).Count)
	})

	t.Run("invalid limit", func(t *testing.T) {
		for _, limit := range []string{"0", "-1", "ten"} {
			w := do(t, h, http.MethodGet, "/dead-letters?limit="+limit, nil, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, limit)
		}
	})
}

func TestPostReplay(t *testing.T) {
	t.Run("re-enqueues with attempts reset", func(t *testing.T) {
		f := newFixture(t, 10)
		require.NoError(t, f.deadLetters.Put(context.Background(), deadLetter("evt-dead", time.Now())))

		w := do(t, f.handler(), http.MethodPost, "/dead-letters/evt-dead/replay", nil, nil)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, webhookResponse{Status: "accepted", EventID: "evt-dead", Source: "port"}, decode[webhookResponse](t, w))
		pending := f.queue.Pending("BL-77")
		require.Len(t, pending, 1)
		assert.Zero(t, pending[0].Attempts)
		count, err := f.deadLetters.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture(t, 10)

		w := do(t, f.handler(), http.MethodPost, "/dead-letters/missing/replay", nil, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decode[errorResponse](t, w).Reason)
	})
}

func TestGetDeliveries(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	for attempt, outcome := range []webhook.Outcome{webhook.OutcomeRetry, webhook.OutcomeProcessed} {
		require.NoError(t, f.deliveries.Append(ctx, webhook.DeliveryRecord{
			EventID:   "evt-1",
			Source:    webhook.Customs,
			EventType: "customs.cleared",
			Attempt:   attempt + 1,
			Timestamp: time.Now(),
			Outcome:   outcome,
		}))
	}
	h := f.handler()

	t.Run("history in attempt order", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/deliveries/evt-1", nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode[deliveriesResponse](t, w)
		require.Len(t, resp.Records, 2)
		assert.Equal(t, webhook.OutcomeRetry, resp.Records[0].Outcome)
		assert.Equal(t, webhook.OutcomeProcessed, resp.Records[1].Outcome)
	})

	t.Run("no history", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/deliveries/evt-none", nil, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, 10)
	f.deps.Metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("gateway_queue_depth 0\n"))
	})

	w := do(t, f.handler(), http.MethodGet, "/metrics", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gateway_queue_depth")
}
