package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// LookupMeta describes one backend interaction for telemetry purposes.
// It carries the secret name, never its value.
type LookupMeta struct {
	Backend   string // Backend name (env, keychain, cloud)
	Secret    string // Secret name being resolved
	Operation string // fetch or credential; defaults to fetch
}

// SpanName returns the deterministic span name for this lookup.
// Format: secret.fetch.<backend>
func (m LookupMeta) SpanName() string {
	return "secret." + m.operation() + "." + m.Backend
}

func (m LookupMeta) operation() string {
	if m.Operation == "" {
		return "fetch"
	}
	return m.Operation
}

// Tracer wraps OpenTelemetry tracing with lookup-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a backend lookup.
	StartSpan(ctx context.Context, meta LookupMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome.
	EndSpan(span trace.Span, found bool, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with lookup metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta LookupMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(
			attribute.String("secret.backend", meta.Backend),
			attribute.String("secret.name", meta.Secret),
			attribute.String("secret.operation", meta.operation()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, found bool, err error) {
	span.SetAttributes(
		attribute.Bool("secret.found", found),
		attribute.Bool("secret.error", err != nil),
	)
	if err != nil {
		span.SetStatus(codes.Error, RedactMessage(err.Error()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a tracer that records nothing.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta LookupMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, found bool, err error) {
	span.End()
}
