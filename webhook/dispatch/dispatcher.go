package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marcelsud/assistant-gateway/webhook"
)

const (
	statusIdle       = "idle"
	statusProcessing = "processing"
)

// Config contains the runtime settings of the worker pool
type Config struct {
	Workers           int
	MaxAttempts       int
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
	ConsumerTimeout   time.Duration
	HeartbeatInterval time.Duration
}

// Validate checks the configuration before any worker starts
func (c Config) Validate() error {
	if c.Workers < 1 {
		return errors.New("dispatch: workers must be >= 1")
	}
	if c.MaxAttempts < 1 {
		return errors.New("dispatch: max attempts must be >= 1")
	}
	if c.BaseBackoff < 0 || c.MaxBackoff < 0 {
		return errors.New("dispatch: backoff cannot be negative")
	}
	if c.MaxBackoff > 0 && c.MaxBackoff < c.BaseBackoff {
		return errors.New("dispatch: max backoff must be >= base backoff")
	}
	if c.ConsumerTimeout <= 0 {
		return errors.New("dispatch: consumer timeout must be > 0")
	}
	return nil
}

// Queue is the part of the event queue the workers drive
type Queue interface {
	Next(ctx context.Context) (webhook.Entry, error)
	Ack(correlationKey string) (webhook.Entry, error)
	Retry(correlationKey string, next time.Time) (webhook.Entry, error)
	DeadLetter(correlationKey string) (webhook.Entry, error)
}

// Dependencies collects the collaborators of the dispatcher
type Dependencies struct {
	Queue       Queue
	Registry    *Registry
	Deliveries  webhook.DeliveryLog
	DeadLetters webhook.DeadLetterStore
	Heartbeats  webhook.HeartbeatStore // optional
	Metrics     Metrics                // optional
	Logger      zerolog.Logger
	Now         func() time.Time
}

/* Dispatcher runs a fixed pool of workers over the queue
 * Each worker owns one entry at a time: it invokes the consumer, then acks,
 * schedules a retry or dead-letters the entry
 */
type Dispatcher struct {
	cfg         Config
	queue       Queue
	registry    *Registry
	deliveries  webhook.DeliveryLog
	deadLetters webhook.DeadLetterStore
	heartbeats  webhook.HeartbeatStore
	metrics     Metrics
	backoff     *Backoff
	logger      zerolog.Logger
	now         func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers map[string]string
}

// New validates cfg and deps and builds a dispatcher; call Start to run it
func New(cfg Config, deps Dependencies) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Queue == nil {
		return nil, errors.New("dispatch: queue dependency is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("dispatch: registry dependency is required")
	}
	if deps.Deliveries == nil {
		return nil, errors.New("dispatch: delivery log dependency is required")
	}
	if deps.DeadLetters == nil {
		return nil, errors.New("dispatch: dead letter store dependency is required")
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Dispatcher{
		cfg:         cfg,
		queue:       deps.Queue,
		registry:    deps.Registry,
		deliveries:  deps.Deliveries,
		deadLetters: deps.DeadLetters,
		heartbeats:  deps.Heartbeats,
		metrics:     metrics,
		backoff:     NewBackoff(cfg.BaseBackoff, cfg.MaxBackoff),
		logger:      deps.Logger.With().Str("component", "dispatcher").Logger(),
		now:         now,
		workers:     make(map[string]string),
	}, nil
}

// Start launches the workers. They stop when ctx is done or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return errors.New("dispatch: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.cfg.Workers; i++ {
		id := uuid.New().String()
		d.workers[id] = statusIdle
		d.wg.Add(1)
		go d.work(ctx, id)
	}
	if d.heartbeats != nil {
		d.wg.Add(1)
		go d.beat(ctx)
	}

	d.logger.Info().Int("workers", d.cfg.Workers).Msg("dispatcher started")
	return nil
}

// Stop signals the workers and waits for in-flight attempts to finish
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()
	d.logger.Info().Msg("dispatcher stopped")
}

// Workers returns the number of workers in the pool
func (d *Dispatcher) Workers() int {
	return d.cfg.Workers
}

func (d *Dispatcher) work(ctx context.Context, workerID string) {
	defer d.wg.Done()

	for {
		entry, err := d.queue.Next(ctx)
		if err != nil {
			return
		}
		d.setStatus(ctx, workerID, statusProcessing)
		// an attempt already started finishes even when shutdown begins
		d.process(context.WithoutCancel(ctx), entry)
		d.setStatus(ctx, workerID, statusIdle)
	}
}

func (d *Dispatcher) process(ctx context.Context, entry webhook.Entry) {
	ev := entry.Event
	attempt := entry.Attempts + 1
	log := d.logger.With().
		Str("event_id", ev.ID).
		Str("source", ev.Source.String()).
		Str("event_type", ev.EventType).
		Str("correlation_key", ev.CorrelationKey).
		Int("attempt", attempt).
		Logger()

	done, err := d.deliveries.Processed(ctx, ev.ID)
	if err != nil {
		log.Error().Err(err).Msg("checking delivery history")
	}
	if done {
		d.record(ctx, ev, attempt, webhook.OutcomeDuplicate, 0, nil)
		d.ack(log, ev)
		log.Info().Msg("skipping event already processed")
		return
	}

	consumer, ok := d.registry.Lookup(ev.Source, ev.EventType)
	if !ok {
		err := fmt.Errorf("no consumer registered for %s %q", ev.Source, ev.EventType)
		d.deadLetter(ctx, log, entry, webhook.FailureUnroutable, 0, err)
		return
	}

	start := d.now()
	err = d.invoke(ctx, consumer, ev)
	latency := d.now().Sub(start)

	if err == nil {
		d.record(ctx, ev, attempt, webhook.OutcomeProcessed, latency, nil)
		d.ack(log, ev)
		log.Info().Dur("latency", latency).Msg("event processed")
		return
	}

	if IsFatal(err) {
		d.metrics.RecordAttempt(ev.Source, ev.EventType, webhook.OutcomeDeadLettered, latency)
		d.deadLetter(ctx, log, entry, webhook.FailureFatal, latency, err)
		return
	}

	if attempt >= d.cfg.MaxAttempts {
		d.metrics.RecordAttempt(ev.Source, ev.EventType, webhook.OutcomeDeadLettered, latency)
		d.deadLetter(ctx, log, entry, webhook.FailureExhausted, latency, err)
		return
	}

	delay := d.backoff.Delay(attempt)
	d.record(ctx, ev, attempt, webhook.OutcomeRetry, latency, err)
	if _, qerr := d.queue.Retry(ev.CorrelationKey, d.now().Add(delay)); qerr != nil {
		log.Error().Err(qerr).Msg("scheduling retry")
		return
	}
	log.Warn().Err(err).Dur("backoff", delay).Msg("consumer failed, retry scheduled")
}

// invoke calls the consumer with its own deadline.
// A consumer that outlives the deadline is abandoned; a panic becomes a transient error.
func (d *Dispatcher) invoke(ctx context.Context, c Consumer, ev webhook.Event) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ConsumerTimeout)
	defer cancel()

	ev.Payload = ev.PayloadCopy()
	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- Transient(fmt.Errorf("consumer panicked: %v", r))
			}
		}()
		result <- c.Consume(ctx, ev)
	}()

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) && !IsFatal(err) {
		err = Transient(fmt.Errorf("consumer timed out after %s: %w", d.cfg.ConsumerTimeout, err))
	}
	return err
}

// deadLetter records the final attempt; latency is zero when no consumer ran
func (d *Dispatcher) deadLetter(ctx context.Context, log zerolog.Logger, entry webhook.Entry, failure webhook.FailureType, latency time.Duration, cause error) {
	ev := entry.Event
	attempt := entry.Attempts + 1
	now := d.now()

	d.record(ctx, ev, attempt, webhook.OutcomeDeadLettered, latency, cause)

	dl := webhook.DeadLetter{
		Event:          ev,
		Attempts:       attempt,
		FailureType:    failure,
		LastError:      cause.Error(),
		FirstFailedAt:  d.firstFailure(ctx, ev.ID, now),
		DeadLetteredAt: now,
	}
	if err := d.deadLetters.Put(ctx, dl); err != nil {
		log.Error().Err(err).Msg("storing dead letter")
	}
	if _, err := d.queue.DeadLetter(ev.CorrelationKey); err != nil {
		log.Error().Err(err).Msg("removing dead-lettered entry")
	}
	d.metrics.RecordDeadLetter(ev.Source, failure)
	log.Error().Err(cause).Str("failure_type", string(failure)).Msg("event dead-lettered")
}

// firstFailure returns the timestamp of the first retry record of eventID, or fallback
func (d *Dispatcher) firstFailure(ctx context.Context, eventID string, fallback time.Time) time.Time {
	history, err := d.deliveries.History(ctx, eventID)
	if err != nil {
		return fallback
	}
	for _, rec := range history {
		if rec.Outcome == webhook.OutcomeRetry || rec.Outcome == webhook.OutcomeDeadLettered {
			return rec.Timestamp
		}
	}
	return fallback
}

func (d *Dispatcher) ack(log zerolog.Logger, ev webhook.Event) {
	if _, err := d.queue.Ack(ev.CorrelationKey); err != nil {
		log.Error().Err(err).Msg("acknowledging entry")
	}
}

func (d *Dispatcher) record(ctx context.Context, ev webhook.Event, attempt int, outcome webhook.Outcome, latency time.Duration, cause error) {
	rec := webhook.DeliveryRecord{
		EventID:   ev.ID,
		Source:    ev.Source,
		EventType: ev.EventType,
		Attempt:   attempt,
		Timestamp: d.now(),
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := d.deliveries.Append(ctx, rec); err != nil {
		d.logger.Error().Err(err).Str("event_id", ev.ID).Msg("appending delivery record")
	}
	if outcome != webhook.OutcomeDeadLettered {
		d.metrics.RecordAttempt(ev.Source, ev.EventType, outcome, latency)
	}
}

func (d *Dispatcher) setStatus(ctx context.Context, workerID, status string) {
	d.mu.Lock()
	d.workers[workerID] = status
	d.mu.Unlock()

	if d.heartbeats == nil || ctx.Err() != nil {
		return
	}
	if err := d.heartbeats.SetWorkerHeartbeat(ctx, workerID, status); err != nil {
		d.logger.Warn().Err(err).Str("worker_id", workerID).Msg("sending heartbeat")
	}
}

// beat refreshes every worker's heartbeat so idle workers do not expire
func (d *Dispatcher) beat(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		d.mu.Lock()
		snapshot := make(map[string]string, len(d.workers))
		for id, status := range d.workers {
			snapshot[id] = status
		}
		d.mu.Unlock()

		for id, status := range snapshot {
			if err := d.heartbeats.SetWorkerHeartbeat(ctx, id, status); err != nil && ctx.Err() == nil {
				d.logger.Warn().Err(err).Str("worker_id", id).Msg("sending heartbeat")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
