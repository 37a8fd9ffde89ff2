package secret

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/opalsecrets/health"
	"github.com/jonwraymond/opalsecrets/observe"
	"github.com/jonwraymond/opalsecrets/resilience"
)

// Retry defaults for remote backends.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 2 * time.Second
)

// DefaultRetryConfig makes up to three attempts two seconds apart and only
// retries transient failures.
func DefaultRetryConfig() resilience.RetryConfig {
	cfg := resilience.FixedDelay(DefaultRetryAttempts, DefaultRetryDelay)
	cfg.RetryIf = IsTransient
	return cfg
}

// NewRetryExecutor builds the executor used by Retrying. Each attempt is
// bounded by callTimeout (resilience.DefaultTimeout when zero or negative)
// and retries are logged at warn level without the secret value.
func NewRetryExecutor(cfg resilience.RetryConfig, callTimeout time.Duration, logger observe.Logger) *resilience.Executor {
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = IsTransient
	}
	onRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn(context.Background(), "retrying secret fetch",
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
			observe.Field{Key: "error", Value: err},
		)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}
	return resilience.NewExecutor(
		resilience.WithRetry(resilience.NewRetry(cfg)),
		resilience.WithTimeout(callTimeout),
	)
}

// retryingBackend runs every fetch of the wrapped backend through an executor.
type retryingBackend struct {
	backend Backend
	exec    *resilience.Executor
}

// Retrying decorates b so each Fetch runs through exec. Absence is a
// successful call and is never retried. When exec gives up, the returned
// error matches resilience.ErrMaxRetriesExceeded and unwraps to the last
// failure.
func Retrying(b Backend, exec *resilience.Executor) Backend {
	if b == nil || exec == nil {
		return b
	}
	return &retryingBackend{backend: b, exec: exec}
}

func (r *retryingBackend) Name() string { return r.backend.Name() }

func (r *retryingBackend) Fetch(ctx context.Context, name string) (string, bool, error) {
	// An attempt abandoned by the per-attempt timeout keeps running and may
	// finish after a later attempt. Each attempt records into its own slot;
	// only the last one started can be the attempt exec accepted.
	type outcome struct {
		value string
		found bool
	}
	var (
		mu       sync.Mutex
		outcomes []outcome
	)
	err := r.exec.Execute(ctx, func(ctx context.Context) error {
		mu.Lock()
		outcomes = append(outcomes, outcome{})
		slot := len(outcomes) - 1
		mu.Unlock()

		v, ok, err := r.backend.Fetch(ctx, name)
		if err != nil {
			return err
		}
		mu.Lock()
		outcomes[slot] = outcome{value: v, found: ok}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return "", false, err
	}

	mu.Lock()
	defer mu.Unlock()
	last := outcomes[len(outcomes)-1]
	return last.value, last.found, nil
}

func (r *retryingBackend) FetchCredential(ctx context.Context, name string) (ServiceAccountCredential, bool, error) {
	return fetchCredential(ctx, r, name)
}

// Check forwards to the wrapped backend when it reports health.
func (r *retryingBackend) Check(ctx context.Context) health.Result {
	if c, ok := r.backend.(health.Checker); ok {
		return c.Check(ctx)
	}
	return health.Healthy(r.backend.Name() + " backend available")
}

func (r *retryingBackend) Close() error { return r.backend.Close() }

// Unwrap returns the decorated backend.
func (r *retryingBackend) Unwrap() Backend { return r.backend }

var (
	_ Backend        = (*retryingBackend)(nil)
	_ health.Checker = (*retryingBackend)(nil)
)
