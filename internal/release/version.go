package release

import (
	"strconv"

	"github.com/opendatateam/hydra-release/internal/errors"
)

// shortSHALen is the commit-hash prefix length used for build metadata.
const shortSHALen = 7

// Version is a resolved release version string. It is immutable once
// computed for a given BuildContext.
//
// No two contexts with differing commit hash or build number should normally
// collapse to the same Version. That uniqueness is a soft invariant relied on
// by the publishing step, not something this package enforces.
type Version string

// String returns the version string.
func (v Version) String() string {
	return string(v)
}

// ResolveVersion computes the canonical release version for the context.
// Priority order, first match wins:
//
//  1. A tag build uses the tag verbatim. (The tag is pre-validated by the
//     promotion rules; it is not re-checked here.)
//  2. A build on the publish branch appends the build number directly to the
//     base version, with no separator. The publish branch must produce a
//     strictly increasing version acceptable to the package index, which
//     disallows local/metadata suffixes.
//  3. Any other build additionally appends "+" and the first seven
//     characters of the commit hash, distinguishing otherwise-identical
//     feature-branch builds per the semantic-versioning build-metadata
//     convention.
//
// The function is pure and idempotent: identical contexts always resolve to
// identical versions. An empty publish branch or an invalid context is an
// error even on tag builds (fail fast, before any version is emitted); a
// short commit hash is not (the available prefix is used), and an empty hash
// omits the metadata suffix entirely.
func ResolveVersion(ctx BuildContext, publishBranch string) (Version, error) {
	if err := ctx.Validate(); err != nil {
		return "", err
	}
	if publishBranch == "" {
		return "", errors.New(errors.CodeInvalidConfig, "publish branch is not configured")
	}

	if ctx.Tag != "" {
		return Version(ctx.Tag), nil
	}

	version := ctx.BaseVersion + strconv.Itoa(ctx.BuildNumber)
	if ctx.Branch == publishBranch {
		return Version(version), nil
	}

	if sha := ctx.ShortSHA(shortSHALen); sha != "" {
		version += "+" + sha
	}
	return Version(version), nil
}
