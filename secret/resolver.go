package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jonwraymond/opalsecrets/cache"
	"github.com/jonwraymond/opalsecrets/health"
	"github.com/jonwraymond/opalsecrets/observe"
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// CacheSize bounds the number of names whose outcome is remembered.
	// Zero uses cache.DefaultCapacity; a negative size disables caching.
	CacheSize int

	// Logger receives resolver diagnostics. Default: the middleware's logger.
	Logger observe.Logger

	// Middleware instruments every backend call. Default: no-op.
	Middleware *observe.Middleware

	// Lookup reads the variables ResolveValue expands (default: os.LookupEnv)
	Lookup func(key string) (string, bool)
}

// lookupResult is the cached outcome for one name. Absence is cached too.
type lookupResult struct {
	value string
	found bool
}

// Resolver answers secret lookups by querying an ordered chain of backends
// and returning the first present value.
//
// Contract:
//   - Concurrency: safe for concurrent use; concurrent misses for the same
//     name query the chain once.
//   - Order: the backend order is fixed at construction.
//   - Caching: present and absent outcomes are cached until evicted; errors
//     are never cached.
//   - Values: secret values are never logged or recorded.
type Resolver struct {
	backends []Backend
	fetchers []observe.FetchFunc
	memo     *cache.Memoizer[lookupResult]
	mw       *observe.Middleware
	logger   observe.Logger

	envLookup func(string) (string, bool)

	closeOnce sync.Once
	closeErr  error
}

// NewResolver creates a resolver over backends, queried in the given order.
// Nil backends are skipped.
func NewResolver(cfg ResolverConfig, backends ...Backend) *Resolver {
	mw := cfg.Middleware
	if mw == nil {
		mw = observe.NewNopMiddleware()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = mw.Logger()
	}

	policy := cache.DefaultPolicy()
	switch {
	case cfg.CacheSize > 0:
		policy.Capacity = cfg.CacheSize
	case cfg.CacheSize < 0:
		policy = cache.NoCachePolicy()
	}

	lru := cache.NewLRU[lookupResult](policy, cache.WithEvictCallback(func(key string) {
		logger.Debug(context.Background(), "secret dropped from cache", observe.Field{Key: "secret.name", Value: key})
	}))

	r := &Resolver{
		memo:   cache.NewMemoizer[lookupResult](lru, policy),
		mw:     mw,
		logger: logger,

		envLookup: cfg.Lookup,
	}
	for _, b := range backends {
		if b == nil {
			continue
		}
		r.backends = append(r.backends, b)
		r.fetchers = append(r.fetchers, mw.Wrap(func(ctx context.Context, meta observe.LookupMeta) (string, bool, error) {
			return b.Fetch(ctx, meta.Secret)
		}))
	}
	return r
}

// GetSecret returns the first present value for name across the chain.
//
// A name no backend holds is (found=false, err=nil). A remote backend
// failure stops the chain and is returned without being cached.
func (r *Resolver) GetSecret(ctx context.Context, name string) (string, bool, error) {
	if strings.TrimSpace(name) == "" {
		return "", false, ErrInvalidName
	}

	res, cached, err := r.memo.Execute(ctx, name, r.lookup)
	if err != nil {
		return "", false, err
	}
	r.mw.RecordCache(ctx, cached)
	return res.value, res.found, nil
}

func (r *Resolver) lookup(ctx context.Context, name string) (lookupResult, error) {
	for i, fetch := range r.fetchers {
		if err := ctx.Err(); err != nil {
			return lookupResult{}, err
		}
		backend := r.backends[i].Name()
		value, found, err := fetch(ctx, observe.LookupMeta{Backend: backend, Secret: name})
		if err != nil {
			return lookupResult{}, fmt.Errorf("secret: resolve %q via %s: %w", name, backend, err)
		}
		if found {
			return lookupResult{value: value, found: true}, nil
		}
	}
	return lookupResult{}, nil
}

// GetServiceAccountJSON resolves name and decodes it as a service-account
// document. A value that is not a JSON object is logged and reported absent.
func (r *Resolver) GetServiceAccountJSON(ctx context.Context, name string) (ServiceAccountCredential, bool, error) {
	raw, found, err := r.GetSecret(ctx, name)
	if err != nil || !found {
		return nil, false, err
	}
	cred, err := DecodeServiceAccount(raw)
	if err != nil {
		// The decoder error may quote the input, so only the sentinel is logged.
		r.logger.Error(ctx, "service account credential could not be parsed",
			observe.Field{Key: "secret.name", Value: name},
			observe.Field{Key: "error", Value: ErrParse},
		)
		return nil, false, nil
	}
	return cred, true, nil
}

// Require returns the value for name or an error matching ErrNotFound.
func (r *Resolver) Require(ctx context.Context, name string) (string, error) {
	value, found, err := r.GetSecret(ctx, name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return value, nil
}

// GetOrDefault returns the value for name, or def when no backend holds it.
func (r *Resolver) GetOrDefault(ctx context.Context, name, def string) (string, error) {
	value, found, err := r.GetSecret(ctx, name)
	if err != nil {
		return "", err
	}
	if !found {
		return def, nil
	}
	return value, nil
}

// Invalidate drops the cached outcome for name.
func (r *Resolver) Invalidate(ctx context.Context, name string) error {
	return r.memo.Forget(ctx, name)
}

// Backends returns the backend names in query order.
func (r *Resolver) Backends() []string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name()
	}
	return names
}

// HealthCheckers returns a checker per backend, in query order. Backends
// that do not report health are considered healthy.
func (r *Resolver) HealthCheckers() []health.Checker {
	checkers := make([]health.Checker, 0, len(r.backends))
	for _, b := range r.backends {
		if c, ok := b.(health.Checker); ok {
			checkers = append(checkers, c)
			continue
		}
		name := b.Name()
		checkers = append(checkers, health.NewCheckerFunc(name, func(context.Context) health.Result {
			return health.Healthy(name + " backend available")
		}))
	}
	return checkers
}

// Close closes every backend once and joins their errors.
func (r *Resolver) Close() error {
	r.closeOnce.Do(func() {
		var errs []error
		for _, b := range r.backends {
			if err := b.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s backend: %w", b.Name(), err))
			}
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

const secretRefPrefix = "secretref:"

var secretRefPattern = regexp.MustCompile(`secretref:([A-Za-z0-9_./-]+)`)

// ParseSecretRef parses a full secret reference of the form secretref:<name>.
func ParseSecretRef(value string) (name string, ok bool) {
	if !strings.HasPrefix(value, secretRefPrefix) {
		return "", false
	}
	m := secretRefPattern.FindStringSubmatchIndex(value)
	if m == nil || m[0] != 0 || m[1] != len(value) {
		return "", false
	}
	return value[m[2]:m[3]], true
}

// ResolveValue expands ${VAR} references strictly, then replaces every
// secretref:<name> token with the resolved secret.
//
// References use the prefix "secretref:":
//   - Full value:  secretref:OPENAI_API_KEY
//   - Inline use:  Bearer secretref:OPENAI_API_KEY
//
// A reference no backend holds is an error matching ErrNotFound.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandWith(value, r.envLookup)
	if err != nil {
		return "", err
	}
	if name, ok := ParseSecretRef(expanded); ok {
		return r.Require(ctx, name)
	}
	return r.resolveInline(ctx, expanded)
}

func (r *Resolver) resolveInline(ctx context.Context, value string) (string, error) {
	matches := secretRefPattern.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value, nil
	}

	out := value
	for i := len(matches) - 1; i >= 0; i-- {
		match := matches[i]

		// Match indexes are stable because we replace from end to start.
		name := out[match[2]:match[3]]
		resolved, err := r.Require(ctx, name)
		if err != nil {
			return "", err
		}
		out = out[:match[0]] + resolved + out[match[1]:]
	}
	return out, nil
}

// ResolveMap resolves each value in input.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}
