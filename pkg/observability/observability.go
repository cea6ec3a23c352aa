// Package observability provides the OpenTelemetry metrics facade for
// the compliance core: violation/alert/reconciliation counters and run
// durations, exported over OTLP gRPC when enabled.
//
// All recording methods are nil-safe so callers can pass a nil
// *Metrics when telemetry is disabled.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // gRPC endpoint, e.g. "localhost:4317"
	Enabled        bool
}

// Provider owns the SDK providers and the core's instruments.
type Provider struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	Metrics        *Metrics
}

// Metrics holds the compliance core's instruments.
type Metrics struct {
	violations  metric.Int64Counter
	advisories  metric.Int64Counter
	alerts      metric.Int64Counter
	syncRecords metric.Int64Counter
	runDuration metric.Float64Histogram
	tracer      trace.Tracer
}

// Init wires up OTLP exporters and returns a Provider. With
// Enabled=false a no-op provider is returned and nothing is exported.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	metricExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)
	otel.SetMeterProvider(mp)

	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExp),
	)
	otel.SetTracerProvider(tp)

	metrics, err := newMetrics(mp.Meter(cfg.ServiceName), tp.Tracer(cfg.ServiceName))
	if err != nil {
		return nil, err
	}
	return &Provider{meterProvider: mp, tracerProvider: tp, Metrics: metrics}, nil
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter provider: %w", err)
		}
	}
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}
	}
	return nil
}

func newMetrics(meter metric.Meter, tracer trace.Tracer) (*Metrics, error) {
	m := &Metrics{tracer: tracer}
	var err error
	if m.violations, err = meter.Int64Counter("keiyaku.compliance.violations",
		metric.WithDescription("Violations found per audit, by severity")); err != nil {
		return nil, fmt.Errorf("create violations counter: %w", err)
	}
	if m.advisories, err = meter.Int64Counter("keiyaku.compliance.advisories",
		metric.WithDescription("Advisory findings per audit")); err != nil {
		return nil, fmt.Errorf("create advisories counter: %w", err)
	}
	if m.alerts, err = meter.Int64Counter("keiyaku.alerts.raised",
		metric.WithDescription("Alerts raised per sweep, by priority")); err != nil {
		return nil, fmt.Errorf("create alerts counter: %w", err)
	}
	if m.syncRecords, err = meter.Int64Counter("keiyaku.sync.records",
		metric.WithDescription("Reconciliation outcomes, by disposition")); err != nil {
		return nil, fmt.Errorf("create sync counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram("keiyaku.run.duration_seconds",
		metric.WithDescription("Duration of audit/sweep/sync runs")); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return m, nil
}

// RecordViolations counts audit violations by severity.
func (m *Metrics) RecordViolations(ctx context.Context, severity string, n int) {
	if m == nil || m.violations == nil {
		return
	}
	m.violations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("severity", severity)))
}

// RecordAdvisories counts audit advisories.
func (m *Metrics) RecordAdvisories(ctx context.Context, n int) {
	if m == nil || m.advisories == nil {
		return
	}
	m.advisories.Add(ctx, int64(n))
}

// RecordAlerts counts sweep findings by priority.
func (m *Metrics) RecordAlerts(ctx context.Context, priority string, n int) {
	if m == nil || m.alerts == nil {
		return
	}
	m.alerts.Add(ctx, int64(n), metric.WithAttributes(attribute.String("priority", priority)))
}

// RecordSync counts reconciliation record outcomes by disposition
// (created, updated, skipped, pending).
func (m *Metrics) RecordSync(ctx context.Context, disposition string, n int) {
	if m == nil || m.syncRecords == nil {
		return
	}
	m.syncRecords.Add(ctx, int64(n), metric.WithAttributes(attribute.String("disposition", disposition)))
}

// RecordRun times one audit/sweep/sync run.
func (m *Metrics) RecordRun(ctx context.Context, kind string, d time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
}

// StartSpan opens a span when tracing is configured; the returned end
// function is always safe to call.
func (m *Metrics) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	if m == nil || m.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := m.tracer.Start(ctx, name)
	return ctx, func() { span.End() }
}
