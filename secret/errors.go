package secret

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"

	"github.com/jonwraymond/opalsecrets/resilience"
)

var (
	// ErrNotFound indicates no backend holds a value for the name.
	// Lookups report absence as (found=false, err=nil); ErrNotFound is only
	// returned by operations that require a value.
	ErrNotFound = errors.New("secret: not found")

	// ErrInvalidName indicates an empty or whitespace-only secret name.
	ErrInvalidName = errors.New("secret: name is required")

	// ErrTransient matches remote failures that may succeed on retry.
	ErrTransient = errors.New("secret: transient backend failure")

	// ErrParse indicates a value is not a JSON service-account object.
	ErrParse = errors.New("secret: invalid service account credential")

	// ErrConfiguration indicates a backend could not be configured and is inert.
	ErrConfiguration = errors.New("secret: backend not configured")

	// ErrChecksumMismatch indicates a payload failed its CRC32C check.
	ErrChecksumMismatch = errors.New("secret: payload checksum mismatch")

	// ErrMissingEnv indicates ${VAR} references to unset environment variables.
	ErrMissingEnv = errors.New("secret: missing required environment variables")
)

// RemoteError is a failure reported by a remote backend.
//
// Transient failures (service unavailable, deadline exceeded, throttling)
// match ErrTransient and are retried; the rest are surfaced immediately.
type RemoteError struct {
	Backend   string
	Secret    string
	Code      codes.Code
	Transient bool
	Err       error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("secret: %s backend: fetch %q: %s: %v", e.Backend, e.Secret, e.Code, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransient and the failure is transient.
func (e *RemoteError) Is(target error) bool {
	return target == ErrTransient && e.Transient
}

// IsTransient reports whether err is worth retrying: a transient remote
// failure or an attempt that ran out of time.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, resilience.ErrTimeout)
}
