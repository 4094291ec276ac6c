// Package release implements the release version resolver and promotion gate
// for the hydra pipeline. Given the metadata that triggered a build (branch or
// tag, build counter, commit hash, declared base version) it computes the
// canonical version string and decides whether the build is published and
// whether the downstream deployment pipeline is triggered.
//
// Version resolution and the promotion decision are pure: they are computed
// once per pipeline invocation and then referenced read-only by every later
// stage.
package release

import (
	"strconv"
	"strings"

	"github.com/opendatateam/hydra-release/internal/errors"
)

// Environment variables consulted by FromEnv. The CIRCLE_* names are what the
// hosted pipeline engine exports; the HYDRA_RELEASE_* names take precedence
// and work anywhere.
const (
	EnvTag         = "CIRCLE_TAG"
	EnvBranch      = "CIRCLE_BRANCH"
	EnvBuildNumber = "CIRCLE_BUILD_NUM"
	EnvCommitSHA   = "CIRCLE_SHA1"

	EnvOverrideTag         = "HYDRA_RELEASE_TAG"
	EnvOverrideBranch      = "HYDRA_RELEASE_BRANCH"
	EnvOverrideBuildNumber = "HYDRA_RELEASE_BUILD_NUM"
	EnvOverrideCommitSHA   = "HYDRA_RELEASE_SHA"
	EnvOverrideBaseVersion = "HYDRA_RELEASE_BASE_VERSION"
)

// BuildContext carries the trigger metadata for one pipeline invocation.
// It is constructed once, from the environment or from local git discovery,
// and treated as immutable afterwards.
type BuildContext struct {
	// BaseVersion is the declared base version, e.g. "1.2.1.dev".
	BaseVersion string `json:"base_version"`

	// BuildNumber is the monotonic per-pipeline-run counter.
	BuildNumber int `json:"build_number"`

	// CommitSHA is the hex commit hash of the build. Seven or more
	// characters are usable; shorter values degrade gracefully.
	CommitSHA string `json:"commit_sha"`

	// Branch is the triggering branch name. Empty on tag builds.
	Branch string `json:"branch,omitempty"`

	// Tag is the triggering tag name. Empty on branch builds. Exactly one
	// of Branch/Tag is meaningful per invocation.
	Tag string `json:"tag,omitempty"`
}

// FromEnv constructs a BuildContext from environment variables using the
// provided lookup function (usually os.Getenv). Override variables win over
// the engine-provided ones. Fields the environment leaves empty stay empty;
// callers may fill them from git discovery before validation.
func FromEnv(getenv func(string) string) (BuildContext, error) {
	ctx := BuildContext{
		BaseVersion: getenv(EnvOverrideBaseVersion),
		CommitSHA:   firstNonEmpty(getenv(EnvOverrideCommitSHA), getenv(EnvCommitSHA)),
		Branch:      firstNonEmpty(getenv(EnvOverrideBranch), getenv(EnvBranch)),
		Tag:         firstNonEmpty(getenv(EnvOverrideTag), getenv(EnvTag)),
	}

	raw := firstNonEmpty(getenv(EnvOverrideBuildNumber), getenv(EnvBuildNumber))
	if raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return BuildContext{}, errors.WrapWithContext(
				err,
				errors.CodeInvalidInput,
				"build number is not an integer",
				map[string]interface{}{
					"value": raw,
				},
			)
		}
		ctx.BuildNumber = n
	}

	return ctx, nil
}

// Validate checks that the context can produce a version.
// An empty base version is a configuration error and must abort the run
// before any version is emitted. A negative build number is an input error.
// A short or empty commit hash is NOT an error; resolution degrades instead.
func (c BuildContext) Validate() error {
	if c.BaseVersion == "" {
		return errors.New(errors.CodeInvalidConfig, "declared base version is empty")
	}
	if c.BuildNumber < 0 {
		return errors.Newf(errors.CodeInvalidInput, "build number %d is negative", c.BuildNumber)
	}
	return nil
}

// ShortSHA returns at most n leading characters of the commit hash.
// Hashes shorter than n are returned whole; an empty hash yields "".
func (c BuildContext) ShortSHA(n int) string {
	if len(c.CommitSHA) <= n {
		return c.CommitSHA
	}
	return c.CommitSHA[:n]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
