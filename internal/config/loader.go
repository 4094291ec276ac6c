package config

import (
	"context"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
)

// LoadOptions configures the behavior of configuration loading.
type LoadOptions struct {
	// SkipValidation disables the Go-side validation pass after decoding.
	// Schema-level constraints are still enforced by CUE.
	SkipValidation bool
}

// Load loads, decodes, and validates a pipeline configuration from the
// given path. A missing file is an error; use LoadOrDefault when the
// built-in defaults should apply instead.
func Load(ctx context.Context, filesystem fsys.Filesystem, path string) (*Config, error) {
	return load(ctx, filesystem, path, LoadOptions{})
}

// LoadWithOptions loads a pipeline configuration with custom options.
func LoadWithOptions(ctx context.Context, filesystem fsys.Filesystem, path string, opts LoadOptions) (*Config, error) {
	return load(ctx, filesystem, path, opts)
}

// LoadOrDefault behaves like Load, except a missing file yields the built-in
// default configuration instead of an error.
func LoadOrDefault(ctx context.Context, filesystem fsys.Filesystem, path string) (*Config, error) {
	exists, err := filesystem.Exists(path)
	if err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeConfigLoadFailed,
			"failed to probe configuration file",
			map[string]interface{}{
				"path": path,
			},
		)
	}
	if !exists {
		return Default(), nil
	}
	return load(ctx, filesystem, path, LoadOptions{})
}

// load reads the user file, unifies it with the embedded schema, decodes the
// result, checks schema version compatibility, and validates.
func load(ctx context.Context, filesystem fsys.Filesystem, path string, opts LoadOptions) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigLoadFailed, "context cancelled")
	}

	userBytes, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeConfigLoadFailed,
			"failed to read configuration file",
			map[string]interface{}{
				"path": path,
			},
		)
	}

	schemaBytes, err := schemaFS.ReadFile(schemaFile)
	if err != nil {
		// The schema is embedded at build time; failing to read it is a bug.
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to read embedded schema")
	}

	cctx := cuecontext.New()

	schemaVal := cctx.CompileBytes(schemaBytes, cue.Filename(schemaFile))
	if schemaVal.Err() != nil {
		return nil, errors.Wrap(schemaVal.Err(), errors.CodeInternal, "embedded schema does not compile")
	}

	userVal := cctx.CompileBytes(userBytes, cue.Filename(path))
	if userVal.Err() != nil {
		return nil, errors.WrapWithContext(
			userVal.Err(),
			errors.CodeConfigLoadFailed,
			"failed to parse configuration",
			map[string]interface{}{
				"path": path,
			},
		)
	}

	merged := schemaVal.Unify(userVal)
	if err := merged.Validate(cue.Concrete(true)); err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeConfigLoadFailed,
			"configuration does not satisfy the schema",
			map[string]interface{}{
				"path": path,
			},
		)
	}

	cfg := &Config{}
	if err := merged.Decode(cfg); err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeConfigDecodeFailed,
			"failed to decode configuration",
			map[string]interface{}{
				"path": path,
			},
		)
	}

	compatible, err := isCompatible(cfg.SchemaVersion)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaIncompatible, "invalid schema version")
	}
	if !compatible {
		return nil, errors.Newf(errors.CodeSchemaIncompatible,
			"configuration declares schema version %s, this build supports ^%s",
			cfg.SchemaVersion, SupportedSchemaVersion)
	}

	if !opts.SkipValidation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
