package observe

import (
	"context"
	"time"
)

// FetchFunc is the signature of a single backend lookup.
// This is the function signature that Middleware wraps.
type FetchFunc func(ctx context.Context, meta LookupMeta) (value string, found bool, err error)

// Middleware wraps backend lookups with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe FetchFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
//   - Values: the looked-up value is returned untouched and never recorded.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components fall back to no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NewNopMiddleware returns a Middleware that records nothing.
func NewNopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Wrap wraps a FetchFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn FetchFunc) FetchFunc {
	return func(ctx context.Context, meta LookupMeta) (string, bool, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		value, found, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, found, err)
		m.metrics.RecordLookup(ctx, meta, duration, found, err)

		logger := m.logger.WithBackend(meta.Backend)
		fields := []Field{
			{Key: "secret.name", Value: meta.Secret},
			{Key: "operation", Value: meta.operation()},
			{Key: "found", Value: found},
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err})
			logger.Warn(ctx, "secret lookup failed", fields...)
		} else {
			logger.Debug(ctx, "secret lookup completed", fields...)
		}

		return value, found, err
	}
}

// RecordCache reports a resolver cache hit or miss.
func (m *Middleware) RecordCache(ctx context.Context, hit bool) {
	m.metrics.RecordCache(ctx, hit)
}

// Logger returns the logger the middleware writes to.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
