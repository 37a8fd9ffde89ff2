package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/opalsecrets/cache"
	"github.com/jonwraymond/opalsecrets/observe"
	"github.com/jonwraymond/opalsecrets/resilience"
)

// Deployment mode.
const (
	// DefaultModeVar is the environment variable holding the deployment mode.
	DefaultModeVar = "OPALSUITE_ENV"

	// CloudMode enables the cloud backend.
	CloudMode = "cloud"
)

// IsCloudMode reports whether mode selects the cloud backend. The comparison
// ignores case and surrounding whitespace.
func IsCloudMode(mode string) bool {
	return strings.EqualFold(strings.TrimSpace(mode), CloudMode)
}

// Config configures the standard backend chain built by New.
type Config struct {
	// Mode is the deployment mode. When empty it is read once from ModeVar.
	Mode string
	// ModeVar names the mode variable (default: OPALSUITE_ENV)
	ModeVar string

	// ProjectID is the cloud project; empty means ambient discovery.
	ProjectID string
	// EnvFiles are the dotenv files loaded by the env backend (default: [".env"])
	EnvFiles []string
	// KeychainService is the keychain namespace (default: OpalSuite)
	KeychainService string

	// CacheSize bounds the resolver cache (default: 128, negative disables)
	CacheSize int
	// RetryAttempts is the number of cloud attempts per lookup (default: 3)
	RetryAttempts int
	// RetryDelay is the constant delay between cloud attempts (default: 2s).
	// Zero selects the default; resilience.NoDelay retries immediately.
	RetryDelay time.Duration
	// CallTimeout bounds each cloud attempt (default: 30s)
	CallTimeout time.Duration

	// Logger receives diagnostics. Default: the middleware's logger.
	Logger observe.Logger
	// Middleware instruments backend calls. Default: no-op.
	Middleware *observe.Middleware

	// CloudAccessor replaces the Secret Manager client.
	CloudAccessor SecretAccessor
	// FindProject replaces ambient project discovery.
	FindProject ProjectFinder
	// Lookup reads environment variables (default: os.LookupEnv)
	Lookup func(key string) (string, bool)
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{
		ModeVar:         DefaultModeVar,
		KeychainService: DefaultKeychainService,
		CacheSize:       cache.DefaultCapacity,
		RetryAttempts:   DefaultRetryAttempts,
		RetryDelay:      DefaultRetryDelay,
		CallTimeout:     resilience.DefaultTimeout,
	}
}

// ConfigFromEnv loads configuration from OPALSECRETS_* variables. Values that
// fail to parse are reported together with any validation errors.
func ConfigFromEnv() (Config, error) {
	var env envReader
	cfg := DefaultConfig()
	cfg.Mode = getEnv("OPALSECRETS_MODE", "")
	cfg.ModeVar = getEnv("OPALSECRETS_MODE_VAR", cfg.ModeVar)
	cfg.ProjectID = getEnv("OPALSECRETS_PROJECT_ID", "")
	cfg.KeychainService = getEnv("OPALSECRETS_KEYCHAIN_SERVICE", cfg.KeychainService)
	cfg.CacheSize = env.int("OPALSECRETS_CACHE_SIZE", cfg.CacheSize)
	cfg.RetryAttempts = env.int("OPALSECRETS_RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.RetryDelay = env.duration("OPALSECRETS_RETRY_DELAY", cfg.RetryDelay)
	cfg.CallTimeout = env.duration("OPALSECRETS_CALL_TIMEOUT", cfg.CallTimeout)
	if files := getEnv("OPALSECRETS_ENV_FILES", ""); files != "" {
		cfg.EnvFiles = splitList(files)
	}

	// An explicit zero delay means "do not wait", not "use the default".
	if v, ok := os.LookupEnv("OPALSECRETS_RETRY_DELAY"); ok && v != "" && cfg.RetryDelay == 0 {
		cfg.RetryDelay = resilience.NoDelay
	}

	if err := errors.Join(append(env.errs, cfg.Validate())...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.RetryAttempts < 0 {
		errs = append(errs, errors.New("OPALSECRETS_RETRY_ATTEMPTS must not be negative"))
	}
	if c.RetryDelay < 0 && c.RetryDelay != resilience.NoDelay {
		errs = append(errs, errors.New("OPALSECRETS_RETRY_DELAY must not be negative"))
	}
	if c.CallTimeout < 0 {
		errs = append(errs, errors.New("OPALSECRETS_CALL_TIMEOUT must not be negative"))
	}
	if strings.ContainsAny(c.ModeVar, "= \t") {
		errs = append(errs, fmt.Errorf("OPALSECRETS_MODE_VAR %q is not a valid variable name", c.ModeVar))
	}

	return errors.Join(errs...)
}

// New builds a resolver over the standard chain: environment, keychain and,
// in cloud mode only, the retrying cloud backend.
//
// The mode variable is read exactly once, here. Outside cloud mode the cloud
// backend is not constructed at all.
func New(ctx context.Context, cfg Config) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ModeVar == "" {
		cfg.ModeVar = DefaultModeVar
	}
	if cfg.Lookup == nil {
		cfg.Lookup = os.LookupEnv
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	mw := cfg.Middleware
	if mw == nil {
		mw = observe.NewNopMiddleware()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = mw.Logger()
	}

	mode := cfg.Mode
	if mode == "" {
		mode, _ = cfg.Lookup(cfg.ModeVar)
	}

	backends := []Backend{
		NewEnvBackend(EnvConfig{Files: cfg.EnvFiles, Lookup: cfg.Lookup, Logger: logger}),
		NewKeychainBackend(KeychainConfig{Service: cfg.KeychainService, Logger: logger}),
	}
	if IsCloudMode(mode) {
		cloud := NewCloudBackend(ctx, CloudConfig{
			ProjectID:   cfg.ProjectID,
			Accessor:    cfg.CloudAccessor,
			FindProject: cfg.FindProject,
			Logger:      logger,
		})
		retry := DefaultRetryConfig()
		retry.MaxAttempts = cfg.RetryAttempts
		retry.InitialDelay = cfg.RetryDelay
		retry.MaxDelay = cfg.RetryDelay
		exec := NewRetryExecutor(retry, cfg.CallTimeout, logger.WithBackend(BackendCloud))
		backends = append(backends, Retrying(cloud, exec))
	}

	logger.Debug(ctx, "secret resolver configured",
		observe.Field{Key: "mode", Value: strings.TrimSpace(mode)},
		observe.Field{Key: "backends", Value: backendNames(backends)},
	)

	return NewResolver(ResolverConfig{
		CacheSize:  cfg.CacheSize,
		Logger:     logger,
		Middleware: mw,
		Lookup:     cfg.Lookup,
	}, backends...), nil
}

func backendNames(backends []Backend) []string {
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name()
	}
	return names
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and keeps every parse failure.
type envReader struct {
	errs []error
}

func (r *envReader) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return n
}

func (r *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
