package health

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// DefaultCheckTimeout bounds a full CheckAll run when no timeout is configured.
const DefaultCheckTimeout = 10 * time.Second

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout is the maximum time to wait for all checks.
	// Default: 10 seconds
	Timeout time.Duration

	// Parallel runs health checks in parallel when true.
	// Default: true
	Parallel bool
}

// Report is the outcome of running every registered checker.
// Checks are listed in registration order, which for a resolver is its
// backend order.
type Report struct {
	Status    Status
	Checks    []NamedResult
	Timestamp time.Time
}

// Result returns the named check result, if present.
func (r Report) Result(name string) (Result, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c.Result, true
		}
	}
	return Result{}, false
}

// Aggregator combines multiple health checkers into a single composite check.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string // Maintains registration order
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	cfg := AggregatorConfig{
		Timeout:  DefaultCheckTimeout,
		Parallel: true,
	}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Timeout <= 0 {
			cfg.Timeout = DefaultCheckTimeout
		}
	}

	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
	}
}

// Register adds a health checker under name. Re-registering a name replaces
// the checker but keeps its original position.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// RegisterAll registers each checker under its own Name.
func (a *Aggregator) RegisterAll(checkers ...Checker) {
	for _, c := range checkers {
		if c != nil {
			a.Register(c.Name(), c)
		}
	}
}

// Unregister removes a health checker from the aggregator.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	if i := slices.Index(a.order, name); i >= 0 {
		a.order = slices.Delete(a.order, i, i+1)
	}
}

// CheckerNames returns the names of all registered checkers in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// Check runs a single named health check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return runCheck(ctx, checker), nil
}

// CheckAll runs all registered health checks and returns an ordered report.
func (a *Aggregator) CheckAll(ctx context.Context) Report {
	a.mu.RLock()
	names := slices.Clone(a.order)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = a.checkers[name]
	}
	a.mu.RUnlock()

	report := Report{
		Checks:    make([]NamedResult, len(names)),
		Timestamp: time.Now(),
	}
	if len(names) == 0 {
		report.Status = StatusHealthy
		return report
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	run := func(i int) {
		report.Checks[i] = NamedResult{Name: names[i], Result: runCheck(ctx, checkers[i])}
	}
	if !a.config.Parallel {
		for i := range checkers {
			run(i)
		}
	} else {
		var wg sync.WaitGroup
		for i := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				run(i)
			}()
		}
		wg.Wait()
	}

	report.Status = OverallStatus(report.Checks)
	return report
}

// OverallStatus computes the overall health status from a set of results.
// Returns Unhealthy if any check is unhealthy.
// Returns Degraded if any check is degraded but none are unhealthy.
// Returns Healthy if all checks are healthy or there are none.
func OverallStatus(results []NamedResult) Status {
	status := StatusHealthy
	for _, r := range results {
		if r.Status > status {
			status = r.Status
		}
	}
	return status
}

// runCheck stamps timing onto a checker's result, or reports a timeout if the
// checker is still running when ctx expires.
func runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() { done <- checker.Check(ctx) }()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Unhealthy("check timed out", ErrCheckTimeout)
	}
	res.Duration = time.Since(start)
	if res.Timestamp.IsZero() {
		res.Timestamp = start
	}
	return res
}

// AggregateName is the name reported by Aggregator.Checker.
const AggregateName = "secrets"

// Checker exposes the whole aggregator as one Checker whose Details map each
// registered name to its status and message.
func (a *Aggregator) Checker() Checker {
	return NewCheckerFunc(AggregateName, func(ctx context.Context) Result {
		report := a.CheckAll(ctx)

		healthy := 0
		details := make(map[string]any, len(report.Checks))
		for _, c := range report.Checks {
			if c.Status == StatusHealthy {
				healthy++
			}
			details[c.Name] = map[string]any{
				"status":   c.Status.String(),
				"message":  c.Message,
				"duration": c.Duration.String(),
			}
		}

		return Result{
			Status:    report.Status,
			Message:   fmt.Sprintf("%d/%d backends healthy", healthy, len(report.Checks)),
			Details:   details,
			Timestamp: report.Timestamp,
		}
	})
}
