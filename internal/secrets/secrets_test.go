package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name            string
		raw             string
		defaultProvider string
		want            Ref
		wantErr         bool
	}{
		{
			name: "explicit scheme",
			raw:  "env://DEPLOY_TOKEN",
			want: Ref{Provider: "env", ID: "DEPLOY_TOKEN"},
		},
		{
			name: "file scheme keeps absolute path",
			raw:  "file:///run/secrets/pypi-token",
			want: Ref{Provider: "file", ID: "/run/secrets/pypi-token"},
		},
		{
			name:            "bare id uses configured default",
			raw:             "DEPLOY_TOKEN",
			defaultProvider: "aws",
			want:            Ref{Provider: "aws", ID: "DEPLOY_TOKEN"},
		},
		{
			name: "bare id falls back to env",
			raw:  "DEPLOY_TOKEN",
			want: Ref{Provider: "env", ID: "DEPLOY_TOKEN"},
		},
		{
			name:    "empty reference",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "blank reference",
			raw:     "   ",
			wantErr: true,
		},
		{
			name:    "missing scheme",
			raw:     "://DEPLOY_TOKEN",
			wantErr: true,
		},
		{
			name:    "missing id",
			raw:     "env://",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseRef(tt.raw, tt.defaultProvider)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref)
		})
	}
}

func TestRefString(t *testing.T) {
	ref := Ref{Provider: "aws", ID: "hydra/pypi-token"}
	assert.Equal(t, "aws://hydra/pypi-token", ref.String())
}

func TestManagerRegister(t *testing.T) {
	mgr := NewManager("")

	require.NoError(t, mgr.Register(NewEnvProvider()))
	assert.True(t, mgr.Registered("env"))
	assert.False(t, mgr.Registered("aws"))

	err := mgr.Register(NewEnvProvider())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))

	err = mgr.Register(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
}

func TestManagerResolve(t *testing.T) {
	t.Setenv("HYDRA_TEST_TOKEN", "s3cr3t")

	mgr := NewManager("env")
	require.NoError(t, mgr.Register(NewEnvProvider()))

	value, err := mgr.Resolve(context.Background(), "env://HYDRA_TEST_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", value)

	// Bare ids go through the default provider.
	value, err = mgr.Resolve(context.Background(), "HYDRA_TEST_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", value)
}

func TestManagerResolve_UnknownScheme(t *testing.T) {
	mgr := NewManager("env")
	require.NoError(t, mgr.Register(NewEnvProvider()))

	_, err := mgr.Resolve(context.Background(), "vault://kv/token")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSecretResolveFailed))
	assert.Contains(t, err.Error(), "vault")
}

func TestManagerResolve_ProviderFailure(t *testing.T) {
	mgr := NewManager("env")
	require.NoError(t, mgr.Register(NewEnvProvider()))

	_, err := mgr.Resolve(context.Background(), "env://HYDRA_TEST_DEFINITELY_UNSET")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSecretResolveFailed))
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestEnvProvider_EmptyValueIsMissing(t *testing.T) {
	t.Setenv("HYDRA_TEST_EMPTY", "")

	provider := NewEnvProvider()
	_, err := provider.Resolve(context.Background(), "HYDRA_TEST_EMPTY")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestEnvProvider_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEnvProvider().Resolve(ctx, "HYDRA_TEST_TOKEN")
	require.Error(t, err)
}

func TestFileProvider(t *testing.T) {
	fs := fsys.NewInMemoryFS()
	require.NoError(t, fs.WriteFile("run/secrets/token", []byte("s3cr3t\n"), 0o600))

	provider := NewFileProvider(fs)
	assert.Equal(t, "file", provider.Name())

	value, err := provider.Resolve(context.Background(), "run/secrets/token")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", value)
}

func TestFileProvider_Missing(t *testing.T) {
	provider := NewFileProvider(fsys.NewInMemoryFS())

	_, err := provider.Resolve(context.Background(), "run/secrets/token")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestFileProvider_LoosePermissions(t *testing.T) {
	fs := fsys.NewInMemoryFS()
	require.NoError(t, fs.WriteFile("run/secrets/token", []byte("s3cr3t\n"), 0o644))

	_, err := NewFileProvider(fs).Resolve(context.Background(), "run/secrets/token")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
	assert.Contains(t, err.Error(), "accessible")
}

func TestFileProvider_EmptyFile(t *testing.T) {
	fs := fsys.NewInMemoryFS()
	require.NoError(t, fs.WriteFile("run/secrets/token", []byte("\n"), 0o600))

	_, err := NewFileProvider(fs).Resolve(context.Background(), "run/secrets/token")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSecretResolveFailed))
}

func TestFileProvider_MultiLine(t *testing.T) {
	fs := fsys.NewInMemoryFS()
	require.NoError(t, fs.WriteFile("run/secrets/token", []byte("one\ntwo\n"), 0o600))

	_, err := NewFileProvider(fs).Resolve(context.Background(), "run/secrets/token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one line")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("HYDRA_TEST_TWINE", "pypi-secret")

	mgr := NewManager("env")
	require.NoError(t, mgr.Register(NewEnvProvider()))

	env, err := mgr.ExpandEnv(context.Background(), map[string]string{
		"TWINE_PASSWORD":   "env://HYDRA_TEST_TWINE",
		"TWINE_REPOSITORY": "https://pypi.example.org/simple",
		"TWINE_USERNAME":   "hydra-ci",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"TWINE_PASSWORD":   "pypi-secret",
		"TWINE_REPOSITORY": "https://pypi.example.org/simple",
		"TWINE_USERNAME":   "hydra-ci",
	}, env)
}

func TestExpandEnv_Empty(t *testing.T) {
	mgr := NewManager("env")

	env, err := mgr.ExpandEnv(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, env)
}

func TestExpandEnv_ResolutionFailure(t *testing.T) {
	mgr := NewManager("env")
	require.NoError(t, mgr.Register(NewEnvProvider()))

	_, err := mgr.ExpandEnv(context.Background(), map[string]string{
		"TWINE_PASSWORD": "env://HYDRA_TEST_DEFINITELY_UNSET",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSecretResolveFailed))
}
