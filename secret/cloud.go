package secret

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/oauth2/google"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jonwraymond/opalsecrets/health"
	"github.com/jonwraymond/opalsecrets/observe"
)

// SecretAccessor is the subset of the Secret Manager client the cloud
// backend uses.
type SecretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// ProjectFinder discovers the project ID from ambient credentials.
type ProjectFinder func(ctx context.Context) (string, error)

// CloudConfig configures the cloud backend.
type CloudConfig struct {
	// ProjectID is the project owning the secrets. When empty it is
	// discovered from ambient credentials.
	ProjectID string

	// Accessor replaces the Secret Manager client. Default: a client built
	// with application default credentials.
	Accessor SecretAccessor

	// FindProject replaces ambient project discovery.
	// Default: the project of the application default credentials.
	FindProject ProjectFinder

	// Logger receives configuration and access diagnostics. Default: no-op.
	Logger observe.Logger
}

// transientCodes are gRPC codes worth retrying.
var transientCodes = map[codes.Code]bool{
	codes.Unavailable:       true,
	codes.DeadlineExceeded:  true,
	codes.ResourceExhausted: true,
	codes.Aborted:           true,
	codes.Internal:          true,
	codes.Unknown:           true,
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CloudBackend resolves secrets from Google Secret Manager, always reading
// projects/{project}/secrets/{name}/versions/latest.
//
// A backend without a project or a client is inert: every fetch is absent
// and nothing is sent over the network.
type CloudBackend struct {
	project  string
	accessor SecretAccessor
	logger   observe.Logger

	// configErr is set when the backend is inert.
	configErr error

	closeOnce sync.Once
	closeErr  error
}

// NewCloudBackend resolves the project and builds the client. It never
// fails: a missing project or client leaves the backend inert, logged once.
func NewCloudBackend(ctx context.Context, cfg CloudConfig) *CloudBackend {
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	b := &CloudBackend{logger: logger.WithBackend(BackendCloud)}

	b.project = strings.TrimSpace(cfg.ProjectID)
	if b.project == "" {
		find := cfg.FindProject
		if find == nil {
			find = defaultProjectFinder
		}
		project, err := find(ctx)
		if err != nil {
			b.logger.Debug(ctx, "ambient credential discovery failed", observe.Field{Key: "error", Value: err})
		}
		b.project = strings.TrimSpace(project)
	}
	if b.project == "" {
		b.configErr = fmt.Errorf("%w: no project id configured or discoverable", ErrConfiguration)
		b.logger.Error(ctx, "cloud secret backend is inert", observe.Field{Key: "error", Value: b.configErr})
		return b
	}

	b.accessor = cfg.Accessor
	if b.accessor == nil {
		client, err := secretmanager.NewClient(ctx)
		if err != nil {
			b.configErr = fmt.Errorf("%w: client: %w", ErrConfiguration, err)
			b.logger.Warn(ctx, "cloud secret backend is inert", observe.Field{Key: "error", Value: b.configErr})
			return b
		}
		b.accessor = &clientAccessor{client: client}
	}

	return b
}

func defaultProjectFinder(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, secretmanager.DefaultAuthScopes()...)
	if err != nil {
		return "", err
	}
	return creds.ProjectID, nil
}

// Name returns "cloud".
func (b *CloudBackend) Name() string { return BackendCloud }

// ProjectID returns the resolved project, or "" when inert.
func (b *CloudBackend) ProjectID() string { return b.project }

// Inert reports whether the backend is unconfigured, and why.
func (b *CloudBackend) Inert() (bool, error) {
	return b.configErr != nil, b.configErr
}

// ResourceName returns the latest-version resource path for name.
func (b *CloudBackend) ResourceName(name string) string {
	return "projects/" + b.project + "/secrets/" + name + "/versions/latest"
}

// Fetch reads the latest version of name.
//
// NotFound is absence. Transient gRPC failures and checksum mismatches are
// returned as transient RemoteErrors; other failures as non-transient ones.
func (b *CloudBackend) Fetch(ctx context.Context, name string) (string, bool, error) {
	if b.configErr != nil {
		return "", false, nil
	}

	resp, err := b.accessor.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: b.ResourceName(name),
	})
	if err != nil {
		code := classifyCode(err)
		if code == codes.NotFound {
			return "", false, nil
		}
		return "", false, &RemoteError{
			Backend:   BackendCloud,
			Secret:    name,
			Code:      code,
			Transient: transientCodes[code],
			Err:       err,
		}
	}

	payload := resp.GetPayload()
	data := payload.GetData()
	if payload != nil && payload.DataCrc32C != nil && int64(crc32.Checksum(data, castagnoli)) != payload.GetDataCrc32C() {
		return "", false, &RemoteError{
			Backend:   BackendCloud,
			Secret:    name,
			Code:      codes.DataLoss,
			Transient: true,
			Err:       ErrChecksumMismatch,
		}
	}
	if len(data) == 0 {
		return "", false, nil
	}
	return string(data), true, nil
}

// classifyCode maps err to a gRPC code, treating bare context errors as
// their gRPC equivalents.
func classifyCode(err error) codes.Code {
	code := status.Code(err)
	if code == codes.Unknown && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		code = status.FromContextError(err).Code()
	}
	return code
}

// FetchCredential fetches name and decodes it as a service-account document.
func (b *CloudBackend) FetchCredential(ctx context.Context, name string) (ServiceAccountCredential, bool, error) {
	return fetchCredential(ctx, b, name)
}

// Check reports whether the backend is configured. It does not call the
// remote service.
func (b *CloudBackend) Check(context.Context) health.Result {
	if b.configErr != nil {
		return health.Unhealthy("cloud secret backend is inert", b.configErr)
	}
	return health.Healthy("cloud secret backend configured").WithDetails(map[string]any{
		"project": b.project,
	})
}

// Close releases the client. It is safe to call more than once.
func (b *CloudBackend) Close() error {
	b.closeOnce.Do(func() {
		if b.accessor != nil {
			b.closeErr = b.accessor.Close()
		}
	})
	return b.closeErr
}

// clientAccessor adapts the generated client to SecretAccessor.
type clientAccessor struct {
	client *secretmanager.Client
}

func (a *clientAccessor) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return a.client.AccessSecretVersion(ctx, req)
}

func (a *clientAccessor) Close() error {
	return a.client.Close()
}

var (
	_ Backend        = (*CloudBackend)(nil)
	_ health.Checker = (*CloudBackend)(nil)
)
