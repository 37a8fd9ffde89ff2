package secret

import (
	"context"
	"fmt"
)

// Backend names.
const (
	BackendEnv      = "env"
	BackendKeychain = "keychain"
	BackendCloud    = "cloud"
)

// Backend is a source that can answer "what is the value for this name?".
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Absence: a missing or empty value is (found=false, err=nil), never an error.
//   - Errors: only failures that leave the answer unknown are returned.
//   - Values: implementations must never log secret values.
type Backend interface {
	Name() string
	Fetch(ctx context.Context, name string) (value string, found bool, err error)
	FetchCredential(ctx context.Context, name string) (ServiceAccountCredential, bool, error)
	Close() error
}

// fetchCredential implements FetchCredential on top of Fetch.
// A value that is present but not a JSON object is an ErrParse error.
func fetchCredential(ctx context.Context, b Backend, name string) (ServiceAccountCredential, bool, error) {
	raw, found, err := b.Fetch(ctx, name)
	if err != nil || !found {
		return nil, false, err
	}
	cred, err := DecodeServiceAccount(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%s backend: %q: %w", b.Name(), name, err)
	}
	return cred, true, nil
}
