package secret

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/jonwraymond/opalsecrets/health"
	"github.com/jonwraymond/opalsecrets/observe"
)

// DefaultKeychainService is the keychain service namespace secrets are read from.
const DefaultKeychainService = "OpalSuite"

// keychainProbeAccount is read by Check; it is not expected to exist.
const keychainProbeAccount = "opalsecrets-health-probe"

// KeychainConfig configures the keychain backend.
type KeychainConfig struct {
	// Service is the keychain service namespace. Default: "OpalSuite".
	Service string

	// Logger receives access diagnostics. Default: no-op.
	Logger observe.Logger
}

// KeychainBackend resolves secrets from the OS credential store, addressing
// each secret as the account name under a fixed service.
//
// Every access error is treated as absence; a locked, missing or
// unsupported store never fails a lookup.
type KeychainBackend struct {
	service string
	logger  observe.Logger
}

// NewKeychainBackend returns a keychain backend. It does not touch the store.
func NewKeychainBackend(cfg KeychainConfig) *KeychainBackend {
	if cfg.Service == "" {
		cfg.Service = DefaultKeychainService
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}
	return &KeychainBackend{
		service: cfg.Service,
		logger:  cfg.Logger.WithBackend(BackendKeychain),
	}
}

// Name returns "keychain".
func (b *KeychainBackend) Name() string { return BackendKeychain }

// Service returns the keychain service namespace.
func (b *KeychainBackend) Service() string { return b.service }

// Fetch reads name from the keychain.
func (b *KeychainBackend) Fetch(ctx context.Context, name string) (string, bool, error) {
	value, err := keyring.Get(b.service, name)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", false, nil
	case err != nil:
		b.logger.Warn(ctx, "keychain unavailable, treating secret as absent",
			observe.Field{Key: "secret.name", Value: name},
			observe.Field{Key: "service", Value: b.service},
			observe.Field{Key: "error", Value: err},
		)
		return "", false, nil
	case value == "":
		return "", false, nil
	}
	return value, true, nil
}

// FetchCredential fetches name and decodes it as a service-account document.
func (b *KeychainBackend) FetchCredential(ctx context.Context, name string) (ServiceAccountCredential, bool, error) {
	return fetchCredential(ctx, b, name)
}

// Check probes the store with a read of an account that should not exist.
// An unreachable store degrades the backend rather than failing it, since
// lookups fall through to the next backend.
func (b *KeychainBackend) Check(context.Context) health.Result {
	details := map[string]any{"service": b.service}

	_, err := keyring.Get(b.service, keychainProbeAccount)
	switch {
	case err == nil, errors.Is(err, keyring.ErrNotFound):
		return health.Healthy("keychain reachable").WithDetails(details)
	case errors.Is(err, keyring.ErrUnsupportedPlatform):
		return health.Degraded("keychain unsupported on this platform").WithDetails(details)
	default:
		return health.Degraded("keychain unavailable").WithDetails(details).WithError(err)
	}
}

// Close is a no-op.
func (b *KeychainBackend) Close() error { return nil }

var (
	_ Backend        = (*KeychainBackend)(nil)
	_ health.Checker = (*KeychainBackend)(nil)
)
