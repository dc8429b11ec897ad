package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"

	"github.com/marcelsud/assistant-gateway/metrics"
	"github.com/marcelsud/assistant-gateway/policy"
	"github.com/marcelsud/assistant-gateway/webhook"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Replayer re-enqueues a dead-lettered event
type Replayer interface {
	Replay(ctx context.Context, eventID string) (webhook.Receipt, error)
}

// Recorder counts request outcomes for /metrics
type Recorder interface {
	RecordReceived(source, result string)
	RecordDecision(role, outcome string)
}

/* Deps is everything the HTTP surface needs from the gateway
 * Handlers hold no state of their own
 */
type Deps struct {
	Logger       zerolog.Logger
	Policy       policy.Authorizer
	Table        *policy.Table
	Webhooks     webhook.UseCase
	Replayer     Replayer
	DeadLetters  webhook.DeadLetterStore
	Deliveries   webhook.DeliveryReader
	Collector    metrics.Collector
	Metrics      http.Handler // optional, serves GET /metrics
	Recorder     Recorder     // optional
	MaxBodyBytes int64
	Timeout      time.Duration
}

func Handlers(ctx context.Context, deps Deps) *chi.Mux {
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(deps.Timeout))

	r.Post("/auth-callback", postAuthCallback(deps.Policy, deps.Recorder).ServeHTTP)
	r.Get("/roles", getRoles(deps.Table).ServeHTTP)
	r.Post("/webhook/{source}", postWebhook(deps.Webhooks, deps.Recorder, deps.MaxBodyBytes).ServeHTTP)

	r.Get("/health", getHealth(deps.Collector).ServeHTTP)
	r.Get("/dead-letters", getDeadLetters(deps.DeadLetters).ServeHTTP)
	r.Post("/dead-letters/{event_id}/replay", postReplay(deps.Replayer).ServeHTTP)
	r.Get("/deliveries/{event_id}", getDeliveries(deps.Deliveries).ServeHTTP)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}

type noopRecorder struct{}

func (noopRecorder) RecordReceived(string, string) {}
func (noopRecorder) RecordDecision(string, string) {}
