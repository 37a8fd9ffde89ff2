package health

import (
	"context"
	"time"
)

// Status is the health of one secret backend, or of the chain as a whole.
// Higher values are worse, so the overall status is the maximum.
type Status int

const (
	// StatusHealthy means lookups against the backend work as configured.
	StatusHealthy Status = iota
	// StatusDegraded means the backend answers every lookup with absence,
	// for example a locked keychain; resolution falls through to later backends.
	StatusDegraded
	// StatusUnhealthy means the backend cannot serve lookups at all.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of one check.
type Result struct {
	Status  Status
	Message string

	// Details carries non-secret metadata such as the project ID or the
	// dotenv files that were loaded.
	Details map[string]any

	Duration  time.Duration
	Timestamp time.Time

	// Error explains a degraded or unhealthy status.
	Error error
}

// NamedResult pairs a result with the checker that produced it.
type NamedResult struct {
	Name string
	Result
}

func newResult(status Status, message string) Result {
	return Result{Status: status, Message: message, Timestamp: time.Now()}
}

// Healthy returns a healthy result.
func Healthy(message string) Result { return newResult(StatusHealthy, message) }

// Degraded returns a degraded result.
func Degraded(message string) Result { return newResult(StatusDegraded, message) }

// Unhealthy returns an unhealthy result caused by err.
func Unhealthy(message string, err error) Result {
	return newResult(StatusUnhealthy, message).WithError(err)
}

// WithDetails replaces the result's details.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration records how long the check took.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// WithError attaches the cause of a degraded or unhealthy status.
func (r Result) WithError(err error) Result {
	r.Error = err
	return r
}

// Checker reports the health of one component.
//
// Contract:
//   - Concurrency: Check may be called concurrently with lookups on the same component.
//   - Context: Check must honor cancellation and return promptly.
//   - Values: results never carry secret values, only names and status.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc returns a Checker named name that runs fn.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string { return f.name }

func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }
