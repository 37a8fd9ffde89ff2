package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy selects how the wait between attempts grows.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by Multiplier after each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear waits InitialDelay times the attempt number.
	BackoffLinear
	// BackoffConstant waits InitialDelay every time.
	BackoffConstant
)

func (s BackoffStrategy) String() string {
	switch s {
	case BackoffExponential:
		return "exponential"
	case BackoffLinear:
		return "linear"
	case BackoffConstant:
		return "constant"
	default:
		return fmt.Sprintf("BackoffStrategy(%d)", int(s))
	}
}

// NoDelay as InitialDelay makes Retry try again immediately. A zero
// InitialDelay selects DefaultInitialDelay instead.
const NoDelay time.Duration = -1

// Defaults applied by NewRetry to zero-valued RetryConfig fields.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0
)

// RetryConfig configures Retry. Zero fields take the Default* values.
type RetryConfig struct {
	// MaxAttempts counts the initial call.
	MaxAttempts int

	// InitialDelay of zero selects DefaultInitialDelay; NoDelay disables waiting.
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Multiplier only applies to BackoffExponential.
	Multiplier float64

	Strategy BackoffStrategy

	// Jitter adds up to 25% on top of each delay.
	Jitter bool

	// RetryIf decides whether a failure is worth another attempt. Rejected
	// errors are returned as-is. Nil retries every error.
	RetryIf func(err error) bool

	// OnRetry runs before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// FixedDelay returns a config that makes up to attempts calls with the same
// delay between them and no jitter. A non-positive delay retries immediately.
func FixedDelay(attempts int, delay time.Duration) RetryConfig {
	if delay <= 0 {
		delay = NoDelay
	}
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: delay,
		MaxDelay:     delay,
		Strategy:     BackoffConstant,
	}
}

// ExhaustedError reports that every attempt failed with a retryable error.
// It matches ErrMaxRetriesExceeded and unwraps to the last failure.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrMaxRetriesExceeded, e.Attempts, e.Err)
}

// Unwrap returns the last failure.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMaxRetriesExceeded.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrMaxRetriesExceeded
}

// Retry re-runs an operation until it succeeds, fails permanently or runs
// out of attempts.
type Retry struct {
	config RetryConfig
}

// NewRetry fills in defaults for zero fields of config.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.InitialDelay == 0 {
		config.InitialDelay = DefaultInitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultMaxDelay
	}
	if config.Multiplier <= 0 {
		config.Multiplier = DefaultMultiplier
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}
	return &Retry{config: config}
}

// Execute runs op until it returns nil or a non-retryable error. When every
// attempt fails with a retryable error, the result is an *ExhaustedError
// wrapping the last failure. Cancelling ctx during a wait returns ctx.Err().
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	cfg := r.config
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil || !cfg.RetryIf(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := r.calculateDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if werr := sleep(ctx, delay); werr != nil {
			return werr
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// calculateDelay returns the wait after the given failed attempt (1-based).
func (r *Retry) calculateDelay(attempt int) time.Duration {
	cfg := r.config
	if cfg.InitialDelay < 0 {
		return 0
	}
	delay := cfg.InitialDelay
	switch cfg.Strategy {
	case BackoffLinear:
		delay *= time.Duration(attempt)
	case BackoffExponential:
		delay = time.Duration(float64(delay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
	}
	delay = min(delay, cfg.MaxDelay)

	if cfg.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// Config returns the effective configuration, defaults included.
func (r *Retry) Config() RetryConfig {
	return r.config
}
