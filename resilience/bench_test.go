package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func BenchmarkRetry_NoRetries(b *testing.B) {
	r := NewRetry(RetryConfig{MaxAttempts: 3})
	ctx := context.Background()
	op := func(ctx context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Execute(ctx, op)
	}
}

func BenchmarkRetry_NonRetryable(b *testing.B) {
	errStop := errors.New("stop")
	r := NewRetry(RetryConfig{
		MaxAttempts: 3,
		RetryIf:     func(err error) bool { return false },
	})
	ctx := context.Background()
	op := func(ctx context.Context) error { return errStop }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Execute(ctx, op)
	}
}

func BenchmarkTimeout_Execute_Fast(b *testing.B) {
	t := NewTimeout(TimeoutConfig{Timeout: time.Second})
	ctx := context.Background()
	op := func(ctx context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = t.Execute(ctx, op)
	}
}

func BenchmarkExecutor_RetryAndTimeout(b *testing.B) {
	e := NewExecutor(
		WithRetry(NewRetry(FixedDelay(3, time.Millisecond))),
		WithTimeout(time.Second),
	)
	ctx := context.Background()
	op := func(ctx context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Execute(ctx, op)
	}
}
