package secret

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"slices"

	"github.com/joho/godotenv"

	"github.com/jonwraymond/opalsecrets/health"
	"github.com/jonwraymond/opalsecrets/observe"
)

// DefaultEnvFile is the dotenv file loaded when EnvConfig.Files is nil.
const DefaultEnvFile = ".env"

// EnvConfig configures the environment backend.
type EnvConfig struct {
	// Files are dotenv files loaded into the process environment at
	// construction. Missing files are skipped. Variables that are already set
	// are never overridden, so loading is idempotent.
	// Default: [".env"]. An empty non-nil slice loads nothing.
	Files []string

	// Lookup reads a variable. Default: os.LookupEnv.
	Lookup func(key string) (string, bool)

	// Logger receives load diagnostics. Default: no-op.
	Logger observe.Logger
}

// EnvBackend resolves secrets from process environment variables.
type EnvBackend struct {
	lookup func(string) (string, bool)
	loaded []string
	failed map[string]error
}

// NewEnvBackend loads the configured dotenv files and returns the backend.
// It never fails: unreadable files are logged and skipped.
func NewEnvBackend(cfg EnvConfig) *EnvBackend {
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	logger = logger.WithBackend(BackendEnv)

	files := cfg.Files
	if files == nil {
		files = []string{DefaultEnvFile}
	}

	b := &EnvBackend{
		lookup: cfg.Lookup,
		failed: make(map[string]error),
	}
	if b.lookup == nil {
		b.lookup = os.LookupEnv
	}

	ctx := context.Background()
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			logger.Debug(ctx, "dotenv file not present", observe.Field{Key: "file", Value: file})
			continue
		}
		if err := godotenv.Load(file); err != nil {
			b.failed[file] = err
			logger.Warn(ctx, "dotenv file could not be loaded",
				observe.Field{Key: "file", Value: file},
				observe.Field{Key: "error", Value: err},
			)
			continue
		}
		b.loaded = append(b.loaded, file)
		logger.Debug(ctx, "dotenv file loaded", observe.Field{Key: "file", Value: file})
	}

	return b
}

// Name returns "env".
func (b *EnvBackend) Name() string { return BackendEnv }

// Fetch returns the variable's value. Unset and empty variables are absent.
func (b *EnvBackend) Fetch(_ context.Context, name string) (string, bool, error) {
	value, ok := b.lookup(name)
	if !ok || value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// FetchCredential fetches name and decodes it as a service-account document.
func (b *EnvBackend) FetchCredential(ctx context.Context, name string) (ServiceAccountCredential, bool, error) {
	return fetchCredential(ctx, b, name)
}

// LoadedFiles returns the dotenv files that were loaded, in load order.
func (b *EnvBackend) LoadedFiles() []string {
	return slices.Clone(b.loaded)
}

// Check reports which dotenv files were loaded. Files that exist but could
// not be parsed degrade the backend; the process environment itself is
// always readable.
func (b *EnvBackend) Check(context.Context) health.Result {
	details := map[string]any{"files": b.LoadedFiles()}
	if len(b.failed) > 0 {
		failed := make([]string, 0, len(b.failed))
		for file := range b.failed {
			failed = append(failed, file)
		}
		slices.Sort(failed)
		details["failed"] = failed
		return health.Degraded("some dotenv files could not be loaded").WithDetails(details)
	}
	return health.Healthy("environment available").WithDetails(details)
}

// Close is a no-op.
func (b *EnvBackend) Close() error { return nil }

var (
	_ Backend        = (*EnvBackend)(nil)
	_ health.Checker = (*EnvBackend)(nil)
)
