// Package resilience provides retry and timeout wrappers for remote calls.
//
// Secret backends that talk to a network service wrap each lookup with these
// patterns so transient failures (unavailability, deadline exceeded) are
// retried a bounded number of times while definitive answers are returned
// immediately.
//
// # Usage
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  3,
//	    InitialDelay: 2 * time.Second,
//	    Strategy:     resilience.BackoffConstant,
//	    RetryIf:      isTransient,
//	})
//
//	executor := resilience.NewExecutor(
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return callExternalService(ctx)
//	})
//	if errors.Is(err, resilience.ErrMaxRetriesExceeded) {
//	    // every attempt failed with a retryable error
//	}
package resilience
