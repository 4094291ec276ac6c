package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatateam/hydra-release/internal/errors"
)

func TestResolveVersion(t *testing.T) {
	tests := []struct {
		name          string
		ctx           BuildContext
		publishBranch string
		expected      Version
	}{
		{
			name: "publish branch appends build number directly",
			ctx: BuildContext{
				BaseVersion: "1.2.1.dev",
				BuildNumber: 447,
				CommitSHA:   "0123456789abcdef",
				Branch:      "main",
			},
			publishBranch: "main",
			expected:      "1.2.1.dev447",
		},
		{
			name: "feature branch appends commit metadata",
			ctx: BuildContext{
				BaseVersion: "1.2.1.dev",
				BuildNumber: 447,
				CommitSHA:   "abcdef1234",
				Branch:      "feature-x",
			},
			publishBranch: "main",
			expected:      "1.2.1.dev447+abcdef1",
		},
		{
			name: "tag wins over branch and base version",
			ctx: BuildContext{
				BaseVersion: "1.2.1.dev",
				BuildNumber: 447,
				CommitSHA:   "abcdef1234",
				Tag:         "v2.0.0",
			},
			publishBranch: "main",
			expected:      "v2.0.0",
		},
		{
			name: "short commit hash is used whole",
			ctx: BuildContext{
				BaseVersion: "1.2.1.dev",
				BuildNumber: 12,
				CommitSHA:   "abc",
				Branch:      "feature-y",
			},
			publishBranch: "main",
			expected:      "1.2.1.dev12+abc",
		},
		{
			name: "empty commit hash omits the metadata suffix",
			ctx: BuildContext{
				BaseVersion: "1.2.1.dev",
				BuildNumber: 12,
				Branch:      "feature-y",
			},
			publishBranch: "main",
			expected:      "1.2.1.dev12",
		},
		{
			name: "publish branch ignores the commit hash entirely",
			ctx: BuildContext{
				BaseVersion: "2.0.0.dev",
				BuildNumber: 1,
				CommitSHA:   "ffffffffff",
				Branch:      "main",
			},
			publishBranch: "main",
			expected:      "2.0.0.dev1",
		},
		{
			name: "build number zero renders as a bare zero",
			ctx: BuildContext{
				BaseVersion: "1.0.0.dev",
				BuildNumber: 0,
				Branch:      "main",
			},
			publishBranch: "main",
			expected:      "1.0.0.dev0",
		},
		{
			name: "branchless detached build gets commit metadata",
			ctx: BuildContext{
				BaseVersion: "1.2.1.dev",
				BuildNumber: 9,
				CommitSHA:   "deadbeefcafe",
			},
			publishBranch: "main",
			expected:      "1.2.1.dev9+deadbee",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveVersion(tt.ctx, tt.publishBranch)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveVersion_Idempotent(t *testing.T) {
	ctx := BuildContext{
		BaseVersion: "1.2.1.dev",
		BuildNumber: 447,
		CommitSHA:   "abcdef1234",
		Branch:      "feature-x",
	}

	first, err := ResolveVersion(ctx, "main")
	require.NoError(t, err)
	second, err := ResolveVersion(ctx, "main")
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical contexts must resolve identically")
}

func TestResolveVersion_Errors(t *testing.T) {
	tests := []struct {
		name          string
		ctx           BuildContext
		publishBranch string
		code          errors.ErrorCode
	}{
		{
			name:          "empty base version is a configuration error",
			ctx:           BuildContext{BuildNumber: 1, Branch: "main"},
			publishBranch: "main",
			code:          errors.CodeInvalidConfig,
		},
		{
			name: "empty base version is fatal even on tag builds",
			ctx: BuildContext{
				BuildNumber: 1,
				Tag:         "v2.0.0",
			},
			publishBranch: "main",
			code:          errors.CodeInvalidConfig,
		},
		{
			name: "negative build number is an input error",
			ctx: BuildContext{
				BaseVersion: "1.0.0.dev",
				BuildNumber: -1,
				Branch:      "main",
			},
			publishBranch: "main",
			code:          errors.CodeInvalidInput,
		},
		{
			name: "missing publish branch is a configuration error",
			ctx: BuildContext{
				BaseVersion: "1.0.0.dev",
				BuildNumber: 1,
				Branch:      "main",
			},
			publishBranch: "",
			code:          errors.CodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveVersion(tt.ctx, tt.publishBranch)

			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}
