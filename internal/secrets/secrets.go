// Package secrets resolves credential references used by the publish and
// trigger jobs. References take the form "provider://id", for example
// "env://DEPLOY_TOKEN" or "aws://hydra/pypi-token"; references without a
// scheme resolve through the configured default provider.
//
// Providers register on a Manager. The env and file providers are pure
// local lookups; the aws provider talks to AWS Secrets Manager.
package secrets

import (
	"context"
	"strings"
	"sync"

	"github.com/opendatateam/hydra-release/internal/errors"
)

// DefaultProvider handles references without an explicit scheme.
const DefaultProvider = "env"

// refSeparator splits the provider scheme from the secret id.
const refSeparator = "://"

// Ref is a parsed secret reference.
type Ref struct {
	// Provider is the registered provider name, e.g. "env".
	Provider string

	// ID identifies the secret within the provider.
	ID string
}

// String renders the reference in provider://id form.
func (r Ref) String() string {
	return r.Provider + refSeparator + r.ID
}

// ParseRef parses a secret reference. A reference without an explicit
// scheme is attributed to defaultProvider, or DefaultProvider when that
// is empty.
func ParseRef(raw, defaultProvider string) (Ref, error) {
	if strings.TrimSpace(raw) == "" {
		return Ref{}, errors.New(errors.CodeInvalidInput, "secret reference is empty")
	}
	if defaultProvider == "" {
		defaultProvider = DefaultProvider
	}

	if !strings.Contains(raw, refSeparator) {
		return Ref{Provider: defaultProvider, ID: raw}, nil
	}

	parts := strings.SplitN(raw, refSeparator, 2)
	if parts[0] == "" || parts[1] == "" {
		return Ref{}, errors.Newf(errors.CodeInvalidInput, "malformed secret reference %q", raw)
	}

	return Ref{Provider: parts[0], ID: parts[1]}, nil
}

// Provider resolves secret values for a single backend.
type Provider interface {
	// Name returns the provider scheme, e.g. "env".
	Name() string

	// Resolve retrieves the secret value for the given id.
	Resolve(ctx context.Context, id string) (string, error)
}

// Manager routes secret references to registered providers.
// Safe for concurrent use.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string

	mu sync.RWMutex
}

// NewManager creates a Manager with an empty provider registry.
// An empty defaultProvider falls back to DefaultProvider.
func NewManager(defaultProvider string) *Manager {
	if defaultProvider == "" {
		defaultProvider = DefaultProvider
	}
	return &Manager{
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// Register adds a provider under its own name.
func (m *Manager) Register(provider Provider) error {
	if provider == nil {
		return errors.New(errors.CodeInvalidInput, "secret provider cannot be nil")
	}
	name := provider.Name()
	if name == "" {
		return errors.New(errors.CodeInvalidInput, "secret provider name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.providers[name]; exists {
		return errors.Newf(errors.CodeInvalidInput, "secret provider %q already registered", name)
	}

	m.providers[name] = provider
	return nil
}

// Registered reports whether a provider is registered under name.
func (m *Manager) Registered(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.providers[name]
	return exists
}

// Resolve parses rawRef and resolves it through the matching provider.
func (m *Manager) Resolve(ctx context.Context, rawRef string) (string, error) {
	ref, err := ParseRef(rawRef, m.defaultProvider)
	if err != nil {
		return "", err
	}
	return m.ResolveRef(ctx, ref)
}

// ResolveRef resolves a parsed reference through the matching provider.
func (m *Manager) ResolveRef(ctx context.Context, ref Ref) (string, error) {
	m.mu.RLock()
	provider, exists := m.providers[ref.Provider]
	m.mu.RUnlock()

	if !exists {
		return "", errors.Newf(errors.CodeSecretResolveFailed,
			"no secret provider registered for scheme %q", ref.Provider)
	}

	value, err := provider.Resolve(ctx, ref.ID)
	if err != nil {
		return "", errors.WrapWithContext(err, errors.CodeSecretResolveFailed,
			"failed to resolve secret", map[string]interface{}{
				"provider": ref.Provider,
				"id":       ref.ID,
			})
	}

	return value, nil
}

// ExpandEnv resolves the secret-valued entries of a step environment.
// A value is treated as a reference only when it carries an explicit
// scheme matching a registered provider; everything else passes through
// verbatim, so literal values such as https URLs keep working.
func (m *Manager) ExpandEnv(ctx context.Context, env map[string]string) (map[string]string, error) {
	if len(env) == 0 {
		return nil, nil
	}

	expanded := make(map[string]string, len(env))
	for key, value := range env {
		scheme, _, found := strings.Cut(value, refSeparator)
		if !found || !m.Registered(scheme) {
			expanded[key] = value
			continue
		}

		resolved, err := m.Resolve(ctx, value)
		if err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeSecretResolveFailed,
				"failed to expand step environment", map[string]interface{}{
					"variable": key,
				})
		}
		expanded[key] = resolved
	}

	return expanded, nil
}
