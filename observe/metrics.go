package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup outcomes reported as the "secret.outcome" attribute.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics records lookup and cache metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records one backend lookup with its duration and outcome.
	RecordLookup(ctx context.Context, meta LookupMeta, duration time.Duration, found bool, err error)

	// RecordCache records a resolver cache hit or miss.
	RecordCache(ctx context.Context, hit bool)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheCount   metric.Int64Counter
}

// NewMetrics creates a Metrics instance with instruments registered on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"secret.lookup.total",
		metric.WithDescription("Total number of backend lookups"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"secret.lookup.errors",
		metric.WithDescription("Total number of backend lookup errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"secret.lookup.duration_ms",
		metric.WithDescription("Backend lookup duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheCount, err := meter.Int64Counter(
		"secret.cache.total",
		metric.WithDescription("Resolver cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cacheCount:   cacheCount,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta LookupMeta, duration time.Duration, found bool, err error) {
	outcome := OutcomeNotFound
	switch {
	case err != nil:
		outcome = OutcomeError
	case found:
		outcome = OutcomeFound
	}

	opt := metric.WithAttributes(
		attribute.String("secret.backend", meta.Backend),
		attribute.String("secret.operation", meta.operation()),
		attribute.String("secret.outcome", outcome),
	)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordCache(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.result", result)))
}

type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that records nothing.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordLookup(ctx context.Context, meta LookupMeta, duration time.Duration, found bool, err error) {
}

func (noopMetrics) RecordCache(ctx context.Context, hit bool) {}
