package secrets

import (
	"context"
	"os"

	"github.com/opendatateam/hydra-release/internal/errors"
)

// EnvProvider resolves secrets from process environment variables.
// This is the default provider: CI systems inject credentials into the
// build environment, so most references look like "env://TWINE_PASSWORD".
type EnvProvider struct{}

var _ Provider = (*EnvProvider)(nil)

// NewEnvProvider creates an environment variable provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// Name returns the provider scheme.
func (p *EnvProvider) Name() string {
	return "env"
}

// Resolve returns the value of the named environment variable.
// Unset and empty variables are both treated as missing: CI templating
// routinely renders absent secrets as empty strings.
func (p *EnvProvider) Resolve(ctx context.Context, id string) (string, error) {
	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), errors.CodeSecretResolveFailed, "resolve cancelled")
	default:
	}

	value, ok := os.LookupEnv(id)
	if !ok || value == "" {
		return "", errors.Newf(errors.CodeNotFound, "environment variable %s is not set", id)
	}

	return value, nil
}
