// Package telemetry wires one OpenTelemetry span per pipeline step and
// one counter per verdict/status, the concrete observability layer
// behind "Observability & Reflection".
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process-wide tracer and meter for pipeline steps.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	stepDuration   metric.Float64Histogram
	verdictCounter metric.Int64Counter
	statusCounter  metric.Int64Counter
}

// New builds a Provider. No exporter, span processor or metric reader
// is attached, so spans and metrics are recorded in-process only and
// are neither exported nor readable after the fact.
func New(ctx context.Context, serviceName string) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	p := &Provider{
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         tp.Tracer("lonelycat-gcec"),
		meter:          mp.Meter("lonelycat-gcec"),
	}
	if err := p.initMetrics(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) initMetrics() error {
	var err error
	p.stepDuration, err = p.meter.Float64Histogram("gcec.step.duration",
		metric.WithDescription("Duration of one pipeline step"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("telemetry: step duration histogram: %w", err)
	}
	p.verdictCounter, err = p.meter.Int64Counter("gcec.decisions.total",
		metric.WithDescription("GovernanceDecision verdicts"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return fmt.Errorf("telemetry: verdict counter: %w", err)
	}
	p.statusCounter, err = p.meter.Int64Counter("gcec.executions.total",
		metric.WithDescription("ExecutionRecord terminal statuses"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return fmt.Errorf("telemetry: status counter: %w", err)
	}
	return nil
}

// StartStep begins a span for one pipeline step, returning a function
// to call when the step finishes (recording its duration and, on
// error, marking the span failed).
func (p *Provider) StartStep(ctx context.Context, stepName string) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "gcec.step."+stepName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("gcec.step", stepName)),
	)
	return ctx, func(err error) {
		p.stepDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("gcec.step", stepName)))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// RecordVerdict increments the per-verdict decision counter.
func (p *Provider) RecordVerdict(ctx context.Context, verdict string) {
	p.verdictCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("gcec.verdict", verdict)))
}

// RecordStatus increments the per-status execution counter.
func (p *Provider) RecordStatus(ctx context.Context, status string) {
	p.statusCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("gcec.status", status)))
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutting down tracer provider: %w", err)
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutting down meter provider: %w", err)
	}
	return nil
}
