package secrets

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/opendatateam/hydra-release/internal/errors"
)

// AWS error codes handled explicitly.
const (
	resourceNotFoundException = "ResourceNotFoundException"
	accessDeniedException     = "AccessDeniedException"
)

// DefaultSecretTTL is how long resolved AWS secrets stay cached.
const DefaultSecretTTL = 5 * time.Minute

// secretsAPI is the subset of the Secrets Manager client used by the
// provider. It exists so tests can substitute a mock implementation.
type secretsAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Verify that the AWS Secrets Manager client implements our interface.
var _ secretsAPI = (*secretsmanager.Client)(nil)

// AWSProvider resolves secrets from AWS Secrets Manager. Resolved values
// are cached with a TTL so repeated lookups within a pipeline run do not
// hit the API again. Only secret names are logged, never values.
type AWSProvider struct {
	api    secretsAPI
	logger *slog.Logger
	cache  *ttlCache

	cacheTTL time.Duration
}

var _ Provider = (*AWSProvider)(nil)

// AWSOption configures an AWSProvider.
type AWSOption func(*AWSProvider)

// WithAWSClient substitutes the Secrets Manager client, primarily for
// testing.
func WithAWSClient(api secretsAPI) AWSOption {
	return func(p *AWSProvider) {
		p.api = api
	}
}

// WithAWSLogger sets the logger used for provider operations.
func WithAWSLogger(logger *slog.Logger) AWSOption {
	return func(p *AWSProvider) {
		p.logger = logger
	}
}

// WithSecretTTL overrides the value cache TTL. Zero or negative disables
// caching.
func WithSecretTTL(ttl time.Duration) AWSOption {
	return func(p *AWSProvider) {
		p.cacheTTL = ttl
	}
}

// NewAWSProvider creates a Secrets Manager provider. Credentials come from
// the default AWS credential chain unless a client is injected via
// WithAWSClient. Transient API errors are retried with exponential backoff.
func NewAWSProvider(ctx context.Context, region string, opts ...AWSOption) (*AWSProvider, error) {
	provider := &AWSProvider{
		logger:   slog.Default(),
		cacheTTL: DefaultSecretTTL,
	}
	for _, opt := range opts {
		opt(provider)
	}

	if provider.api == nil {
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRetryer(func() aws.Retryer { return newRetryer() }),
		}
		if region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(region))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeSecretResolveFailed,
				"failed to load AWS configuration")
		}
		provider.api = secretsmanager.NewFromConfig(awsCfg)
	}

	if provider.cacheTTL > 0 {
		provider.cache = newTTLCache(provider.cacheTTL)
	}

	return provider, nil
}

// Name returns the provider scheme.
func (p *AWSProvider) Name() string {
	return "aws"
}

// Resolve fetches the secret value named id. String secrets return their
// SecretString; binary secrets are returned byte for byte.
func (p *AWSProvider) Resolve(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.New(errors.CodeInvalidInput, "secret id cannot be empty")
	}

	if p.cache != nil {
		if value, found := p.cache.get(id); found {
			p.logger.DebugContext(ctx, "secret cache hit", "secret_name", id)
			return value, nil
		}
	}

	p.logger.DebugContext(ctx, "retrieving secret", "secret_name", id)

	output, err := p.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var apiErr smithy.APIError
		if stderrors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case resourceNotFoundException:
				return "", errors.Newf(errors.CodeNotFound, "secret %s does not exist", id)
			case accessDeniedException:
				return "", errors.Newf(errors.CodeSecretResolveFailed,
					"access to secret %s denied", id)
			}
		}
		return "", errors.Wrap(err, errors.CodeSecretResolveFailed, "failed to retrieve secret")
	}

	var value string
	switch {
	case output.SecretString != nil:
		value = aws.ToString(output.SecretString)
	case len(output.SecretBinary) > 0:
		value = string(output.SecretBinary)
	default:
		return "", errors.Newf(errors.CodeSecretResolveFailed, "secret %s has no value", id)
	}

	if p.cache != nil {
		p.cache.set(id, value)
	}

	return value, nil
}
