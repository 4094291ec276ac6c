package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatateam/hydra-release/internal/errors"
)

func envFrom(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected BuildContext
	}{
		{
			name: "engine variables",
			env: map[string]string{
				EnvBranch:      "main",
				EnvBuildNumber: "447",
				EnvCommitSHA:   "abcdef1234",
			},
			expected: BuildContext{
				Branch:      "main",
				BuildNumber: 447,
				CommitSHA:   "abcdef1234",
			},
		},
		{
			name: "tag build",
			env: map[string]string{
				EnvTag:         "v2.0.0",
				EnvBuildNumber: "448",
				EnvCommitSHA:   "abcdef1234",
			},
			expected: BuildContext{
				Tag:         "v2.0.0",
				BuildNumber: 448,
				CommitSHA:   "abcdef1234",
			},
		},
		{
			name: "overrides win over engine variables",
			env: map[string]string{
				EnvBranch:              "main",
				EnvOverrideBranch:      "feature-x",
				EnvBuildNumber:         "447",
				EnvOverrideBuildNumber: "12",
				EnvOverrideBaseVersion: "1.2.1.dev",
			},
			expected: BuildContext{
				Branch:      "feature-x",
				BuildNumber: 12,
				BaseVersion: "1.2.1.dev",
			},
		},
		{
			name:     "empty environment yields empty context",
			env:      map[string]string{},
			expected: BuildContext{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := FromEnv(envFrom(tt.env))

			require.NoError(t, err)
			assert.Equal(t, tt.expected, ctx)
		})
	}
}

func TestFromEnv_BadBuildNumber(t *testing.T) {
	_, err := FromEnv(envFrom(map[string]string{EnvBuildNumber: "not-a-number"}))

	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestBuildContext_Validate(t *testing.T) {
	tests := []struct {
		name string
		ctx  BuildContext
		code errors.ErrorCode
	}{
		{
			name: "valid context",
			ctx:  BuildContext{BaseVersion: "1.2.1.dev", BuildNumber: 1},
		},
		{
			name: "empty base version",
			ctx:  BuildContext{BuildNumber: 1},
			code: errors.CodeInvalidConfig,
		},
		{
			name: "negative build number",
			ctx:  BuildContext{BaseVersion: "1.2.1.dev", BuildNumber: -7},
			code: errors.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ctx.Validate()

			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestBuildContext_ShortSHA(t *testing.T) {
	tests := []struct {
		name     string
		sha      string
		n        int
		expected string
	}{
		{"long hash truncates", "abcdef1234567890", 7, "abcdef1"},
		{"exact length stays", "abcdef1", 7, "abcdef1"},
		{"short hash stays whole", "abc", 7, "abc"},
		{"empty hash stays empty", "", 7, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := BuildContext{CommitSHA: tt.sha}
			assert.Equal(t, tt.expected, ctx.ShortSHA(tt.n))
		})
	}
}
