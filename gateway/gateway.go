// Package gateway wires the policy engine, webhook pipeline and HTTP surface
// into one instance built at process start.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/marcelsud/assistant-gateway/config"
	httpchi "github.com/marcelsud/assistant-gateway/internal/http/chi"
	"github.com/marcelsud/assistant-gateway/metrics"
	"github.com/marcelsud/assistant-gateway/policy"
	"github.com/marcelsud/assistant-gateway/sources"
	"github.com/marcelsud/assistant-gateway/webhook"
	"github.com/marcelsud/assistant-gateway/webhook/consumer"
	"github.com/marcelsud/assistant-gateway/webhook/dispatch"
	"github.com/marcelsud/assistant-gateway/webhook/memory"
	"github.com/marcelsud/assistant-gateway/webhook/queue"
	"github.com/marcelsud/assistant-gateway/webhook/redis"
	"github.com/marcelsud/assistant-gateway/webhook/signature"
)

const (
	metricsNamespace = "gateway"
	heartbeatTTL     = 60 * time.Second
)

// stores groups the persistence the pipeline runs on, in memory or in Redis
type stores struct {
	deliveries  webhook.DeliveryLog
	deadLetters webhook.DeadLetterStore
	heartbeats  webhook.HeartbeatStore
	close       func(ctx context.Context) error
}

/* Gateway is the single service instance handed to every handler
 * Policy table and source catalog are read once in New and never reloaded
 */
type Gateway struct {
	cfg        *config.Config
	logger     zerolog.Logger
	table      *policy.Table
	catalog    *sources.Loader
	queue      *queue.Queue
	dispatcher *dispatch.Dispatcher
	replayer   *webhook.Replayer
	exporter   *metrics.OTelExporter
	stores     stores
	router     http.Handler
}

// New loads the policy table and source catalog and builds every component.
// Nothing runs until Start or Run is called.
func New(cfg *config.Config, logger zerolog.Logger) (*Gateway, error) {
	table, err := loadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	catalog := sources.NewLoader()
	if err := catalog.Load(cfg.SourcesFile); err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	if err := catalog.CheckHelpers(table); err != nil {
		return nil, fmt.Errorf("checking sources against policy: %w", err)
	}

	verifier := signature.NewVerifier()
	registry := dispatch.NewRegistry()
	for _, src := range catalog.List() {
		for _, secret := range src.Secrets {
			if err := verifier.AddSecret(src.Source, secret); err != nil {
				return nil, fmt.Errorf("adding secret for %s: %w", src.Source, err)
			}
		}
		for _, sub := range src.Subscriptions {
			c := consumer.NewHTTP(sub.TargetURL, sub.ExpectedStatus, sub.Helper, nil)
			for _, pattern := range sub.EventTypes {
				if err := registry.Register(src.Source, pattern, c); err != nil {
					return nil, fmt.Errorf("registering subscription %s: %w", sub.Name, err)
				}
			}
		}
	}

	st, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	q, err := queue.New(cfg.QueueCapacity, st.deliveries)
	if err != nil {
		return nil, fmt.Errorf("creating queue: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheus(promRegistry, metricsNamespace)

	dispatcher, err := dispatch.New(dispatch.Config{
		Workers:         cfg.DispatchWorkers,
		MaxAttempts:     cfg.MaxAttempts,
		BaseBackoff:     cfg.BaseBackoff(),
		MaxBackoff:      cfg.MaxBackoff(),
		ConsumerTimeout: cfg.ConsumerTimeout(),
	}, dispatch.Dependencies{
		Queue:       q,
		Registry:    registry,
		Deliveries:  st.deliveries,
		DeadLetters: st.deadLetters,
		Heartbeats:  st.heartbeats,
		Metrics:     recorder,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	collector := metrics.NewGatewayCollector(q, st.deadLetters, st.heartbeats)
	exporter, err := metrics.NewOTelExporter(collector, promRegistry)
	if err != nil {
		return nil, fmt.Errorf("creating metrics exporter: %w", err)
	}

	g := &Gateway{
		cfg:        cfg,
		logger:     logger,
		table:      table,
		catalog:    catalog,
		queue:      q,
		dispatcher: dispatcher,
		replayer:   webhook.NewReplayer(st.deadLetters, q, logger),
		exporter:   exporter,
		stores:     st,
	}
	g.router = httpchi.Handlers(context.Background(), httpchi.Deps{
		Logger:       logger,
		Policy:       policy.NewEngine(table, logger),
		Table:        table,
		Webhooks:     webhook.NewService(verifier, q, logger),
		Replayer:     g.replayer,
		DeadLetters:  st.deadLetters,
		Deliveries:   st.deliveries,
		Collector:    collector,
		Metrics:      exporter.Handler(),
		Recorder:     recorder,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	logger.Info().
		Int("roles", len(table.Roles())).
		Int("sources", len(catalog.List())).
		Bool("redis", cfg.UseRedis()).
		Msg("gateway configured")

	return g, nil
}

func loadPolicy(path string) (*policy.Table, error) {
	if path == "" {
		return policy.DefaultTable(), nil
	}
	table, err := policy.LoadTable(path)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	return table, nil
}

func openStores(cfg *config.Config) (stores, error) {
	if !cfg.UseRedis() {
		return stores{
			deliveries:  memory.NewDeliveryLog(),
			deadLetters: memory.NewDeadLetterStore(),
			heartbeats:  memory.NewHeartbeatStore(heartbeatTTL),
			close:       func(context.Context) error { return nil },
		}, nil
	}
	repo, err := redis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return stores{}, fmt.Errorf("connecting to redis: %w", err)
	}
	return stores{
		deliveries:  repo,
		deadLetters: repo,
		heartbeats:  repo,
		close:       repo.Close,
	}, nil
}

// Handler returns the HTTP surface
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Replay re-enqueues a dead-lettered event
func (g *Gateway) Replay(ctx context.Context, eventID string) (webhook.Receipt, error) {
	return g.replayer.Replay(ctx, eventID)
}

// Start launches the dispatcher workers
func (g *Gateway) Start(ctx context.Context) error {
	return g.dispatcher.Start(ctx)
}

// Close stops the workers, letting in-flight attempts finish, then releases the stores
func (g *Gateway) Close(ctx context.Context) error {
	g.dispatcher.Stop()
	return errors.Join(
		g.exporter.Shutdown(ctx),
		g.stores.close(ctx),
	)
}

// Run serves HTTP and dispatches events until ctx is cancelled, then shuts down
// within the configured timeout.
func (g *Gateway) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + g.cfg.Port,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := g.Start(ctx); err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		g.logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.ShutdownTimeout())
		defer cancel()
		return errors.Join(
			server.Shutdown(shutdownCtx),
			g.Close(shutdownCtx),
		)
	})
	return eg.Wait()
}
