package config

import (
	"github.com/Masterminds/semver/v3"

	"github.com/opendatateam/hydra-release/internal/errors"
)

// isCompatible reports whether a configuration written against the given
// schema version can be consumed by this build. Compatibility follows a
// caret constraint on the supported version: any release with the same
// major version at or above it is accepted.
func isCompatible(version string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, errors.Newf(errors.CodeInvalidConfig, "schemaVersion %q is not a semantic version", version)
	}

	constraint, err := semver.NewConstraint("^" + SupportedSchemaVersion)
	if err != nil {
		return false, errors.Wrap(err, errors.CodeInternal, "supported schema version is malformed")
	}

	return constraint.Check(v), nil
}
