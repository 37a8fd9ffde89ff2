package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewExecutor(t *testing.T) {
	e := NewExecutor()

	if e.retry != nil {
		t.Error("Default executor should not have retry")
	}
	if e.timeout != nil {
		t.Error("Default executor should not have timeout")
	}
}

func TestExecutor_WithOptions(t *testing.T) {
	retry := NewRetry(RetryConfig{})

	e := NewExecutor(
		WithRetry(retry),
		WithTimeout(time.Second),
	)

	if e.Retry() != retry {
		t.Error("Retry not set")
	}
	if e.timeout == nil || e.timeout.Config().Timeout != time.Second {
		t.Error("Timeout not set")
	}
}

func TestExecutor_ExecuteNoPatterns(t *testing.T) {
	e := NewExecutor()

	executed := false
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		executed = true
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if !executed {
		t.Error("Operation was not executed")
	}
}

func TestExecutor_ExecuteWithTimeout(t *testing.T) {
	e := NewExecutor(WithTimeout(20 * time.Millisecond))

	t.Run("completes in time", func(t *testing.T) {
		err := e.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		})
		if err != nil {
			t.Errorf("Execute() error = %v", err)
		}
	})

	t.Run("times out", func(t *testing.T) {
		err := e.Execute(context.Background(), func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		})
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("Execute() error = %v, want ErrTimeout", err)
		}
	})
}

func TestExecutor_ExecuteWithRetry(t *testing.T) {
	e := NewExecutor(WithRetry(NewRetry(FixedDelay(3, time.Millisecond))))

	attempts := 0
	testErr := errors.New("transient error")

	err := e.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return testErr
		}
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestExecutor_TimeoutAppliesPerAttempt(t *testing.T) {
	var attempts atomic.Int32
	e := NewExecutor(
		WithRetry(NewRetry(RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			Strategy:     BackoffConstant,
			RetryIf:      func(err error) bool { return errors.Is(err, ErrTimeout) },
		})),
		WithTimeout(20*time.Millisecond),
	)

	err := e.Execute(context.Background(), func(ctx context.Context) error {
		n := attempts.Add(1)
		if n == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestExecutor_ExhaustionPropagates(t *testing.T) {
	e := NewExecutor(
		WithRetry(NewRetry(FixedDelay(2, time.Millisecond))),
		WithTimeout(time.Second),
	)

	testErr := errors.New("service unavailable")
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})

	if !errors.Is(err, ErrMaxRetriesExceeded) || !errors.Is(err, testErr) {
		t.Errorf("Execute() error = %v, want exhausted %v", err, testErr)
	}
}
