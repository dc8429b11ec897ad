package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/assistant-gateway/metrics"
	"github.com/marcelsud/assistant-gateway/policy"
	"github.com/marcelsud/assistant-gateway/webhook"
	"github.com/marcelsud/assistant-gateway/webhook/memory"
	"github.com/marcelsud/assistant-gateway/webhook/queue"
	"github.com/marcelsud/assistant-gateway/webhook/signature"
)

const customsSecret = "whsec_Y3VzdG9tcy1wYXJ0bmVyLXNlY3JldC0yMDI0IQ=="

// fixture wires the handlers over real in-memory components
type fixture struct {
	queue       *queue.Queue
	deliveries  *memory.DeliveryLog
	deadLetters *memory.DeadLetterStore
	secret      signature.Secret
	deps        Deps
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	secret, err := signature.ParseSecret(customsSecret)
	require.NoError(t, err)
	verifier := signature.NewVerifier()
	require.NoError(t, verifier.AddSecret(webhook.Customs, secret))

	deliveries := memory.NewDeliveryLog()
	q, err := queue.New(capacity, deliveries)
	require.NoError(t, err)
	deadLetters := memory.NewDeadLetterStore()
	logger := zerolog.Nop()

	return &fixture{
		queue:       q,
		deliveries:  deliveries,
		deadLetters: deadLetters,
		secret:      secret,
		deps: Deps{
			Logger:      logger,
			Policy:      policy.NewEngine(policy.DefaultTable(), logger),
			Table:       policy.DefaultTable(),
			Webhooks:    webhook.NewService(verifier, q, logger),
			Replayer:    webhook.NewReplayer(deadLetters, q, logger),
			DeadLetters: deadLetters,
			Deliveries:  deliveries,
			Collector:   metrics.NewGatewayCollector(q, deadLetters, memory.NewHeartbeatStore(time.Minute)),
		},
	}
}

func (f *fixture) handler() http.Handler {
	return Handlers(context.Background(), f.deps)
}

func (f *fixture) sign(body []byte) string {
	return signature.BuildSignatureHeader([]signature.Signature{signature.Sign(f.secret, body)})
}

func do(t *testing.T, h http.Handler, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, target, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

type recorder struct {
	received  []string
	decisions []string
}

func (r *recorder) RecordReceived(source, result string) {
	r.received = append(r.received, source+"/"+result)
}

func (r *recorder) RecordDecision(role, outcome string) {
	r.decisions = append(r.decisions, role+"/"+outcome)
}
