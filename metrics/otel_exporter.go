package metrics

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter publishes pipeline gauges through OpenTelemetry in Prometheus format
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector
	registry      *promclient.Registry

	meter              metric.Meter
	queueDepthGauge    metric.Int64ObservableGauge
	queueCapacityGauge metric.Int64ObservableGauge
	inFlightGauge      metric.Int64ObservableGauge
	deadLettersGauge   metric.Int64ObservableGauge
	workersGauge       metric.Int64ObservableGauge
}

// NewOTelExporter creates an exporter writing into registry, which also serves the counters
// of the dispatcher so one /metrics endpoint exposes both
func NewOTelExporter(collector Collector, registry *promclient.Registry) (*OTelExporter, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	meter := meterProvider.Meter(
		"assistant-gateway",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		registry:      registry,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates the gauges and one callback observing all of them
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.queueDepthGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.queue.depth",
		metric.WithDescription("Number of queued webhook events, in flight included"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return fmt.Errorf("creating queue depth gauge: %w", err)
	}

	oe.queueCapacityGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.queue.capacity",
		metric.WithDescription("Configured bound of the event queue"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return fmt.Errorf("creating queue capacity gauge: %w", err)
	}

	oe.inFlightGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.queue.in_flight",
		metric.WithDescription("Number of events being dispatched"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return fmt.Errorf("creating in-flight gauge: %w", err)
	}

	oe.deadLettersGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.dead_letters",
		metric.WithDescription("Number of retained dead letters"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return fmt.Errorf("creating dead letters gauge: %w", err)
	}

	oe.workersGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.workers.active",
		metric.WithDescription("Number of dispatcher workers by status"),
		metric.WithUnit("{workers}"),
	)
	if err != nil {
		return fmt.Errorf("creating active workers gauge: %w", err)
	}

	_, err = oe.meter.RegisterCallback(oe.observe,
		oe.queueDepthGauge,
		oe.queueCapacityGauge,
		oe.inFlightGauge,
		oe.deadLettersGauge,
		oe.workersGauge,
	)
	if err != nil {
		return fmt.Errorf("registering callback: %w", err)
	}

	return nil
}

// observe reports a single snapshot so all gauges of one scrape agree
func (oe *OTelExporter) observe(ctx context.Context, o metric.Observer) error {
	snap, err := oe.collector.Collect(ctx)
	// queue figures are valid even when a store read failed
	o.ObserveInt64(oe.queueDepthGauge, snap.QueueDepth)
	o.ObserveInt64(oe.queueCapacityGauge, snap.QueueCapacity)
	o.ObserveInt64(oe.inFlightGauge, snap.InFlight)
	if err != nil {
		return err
	}
	o.ObserveInt64(oe.deadLettersGauge, snap.DeadLetters)

	byStatus := make(map[string]int64)
	for _, w := range snap.Workers {
		byStatus[w.Status]++
	}
	for status, n := range byStatus {
		o.ObserveInt64(oe.workersGauge, n, metric.WithAttributes(
			attribute.String("worker.status", status),
		))
	}

	return nil
}

// Handler serves the Prometheus text format for everything in the registry
func (oe *OTelExporter) Handler() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
