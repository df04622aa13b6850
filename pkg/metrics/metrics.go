// Package metrics exposes workflow counters through OpenTelemetry with a
// Prometheus exporter.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry

	transitions   otelmetric.Int64Counter
	conflicts     otelmetric.Int64Counter
	notifications otelmetric.Int64Counter
	relayed       otelmetric.Int64Counter
	duration      otelmetric.Float64Histogram
}

// New creates a meter provider that exports to a private Prometheus registry.
func New(serviceName string) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	m, err := build(provider.Meter(serviceName))
	if err != nil {
		return nil, err
	}

	m.provider = provider
	m.registry = registry

	return m, nil
}

// NewNoop returns metrics that record nothing.
func NewNoop() *Metrics {
	m, _ := build(noop.NewMeterProvider().Meter("noop"))

	return m
}

func build(meter otelmetric.Meter) (*Metrics, error) {
	transitions, err := meter.Int64Counter("workflow.transitions",
		otelmetric.WithDescription("Manuscript status transitions committed"))
	if err != nil {
		return nil, err
	}

	conflicts, err := meter.Int64Counter("workflow.conflicts",
		otelmetric.WithDescription("Revision conflicts retried by the controller"))
	if err != nil {
		return nil, err
	}

	notifications, err := meter.Int64Counter("notifications.created",
		otelmetric.WithDescription("Notifications written"))
	if err != nil {
		return nil, err
	}

	relayed, err := meter.Int64Counter("outbox.relayed",
		otelmetric.WithDescription("Outbox events published to the bus"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("workflow.operation.duration",
		otelmetric.WithDescription("Workflow operation duration"),
		otelmetric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		transitions:   transitions,
		conflicts:     conflicts,
		notifications: notifications,
		relayed:       relayed,
		duration:      duration,
	}, nil
}

func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	m.transitions.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *Metrics) RecordConflict(ctx context.Context, op string) {
	m.conflicts.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("operation", op)))
}

func (m *Metrics) RecordNotifications(ctx context.Context, source string, n int) {
	m.notifications.Add(ctx, int64(n), otelmetric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) RecordRelayed(ctx context.Context, n int) {
	m.relayed.Add(ctx, int64(n))
}

func (m *Metrics) RecordOperation(ctx context.Context, op string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	m.duration.Record(ctx, float64(elapsed.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("status", status),
	))
}

// Handler serves the Prometheus exposition format. Noop metrics serve an empty registry.
func (m *Metrics) Handler() http.Handler {
	registry := m.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}

	return m.provider.Shutdown(ctx)
}
