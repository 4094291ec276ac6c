package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/opendatateam/hydra-release/internal/errors"
)

// Validate checks constraints the CUE schema cannot express, or that must
// also hold for configurations assembled programmatically. It collects all
// violations before failing so a broken file reports everything at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New(errors.CodeInvalidInput, "configuration is nil")
	}

	var violations []string

	if strings.TrimSpace(c.App) == "" {
		violations = append(violations, "app must not be empty")
	}
	if strings.TrimSpace(c.Environment) == "" {
		violations = append(violations, "environment must not be empty")
	}

	if strings.TrimSpace(c.Release.PublishBranch) == "" {
		violations = append(violations, "release.publishBranch must not be empty")
	}
	if strings.TrimSpace(c.Release.VersionFile) == "" {
		violations = append(violations, "release.versionFile must not be empty")
	}
	if _, err := c.Rules(); err != nil {
		violations = append(violations, fmt.Sprintf("release promotion patterns do not compile: %v", err))
	}

	if c.Jobs.Tests.Parallelism <= 0 {
		violations = append(violations, "jobs.tests.parallelism must be positive")
	}
	violations = append(violations, validateSteps("jobs.install", c.Jobs.Install.Steps)...)
	violations = append(violations, validateSteps("jobs.lint", c.Jobs.Lint.Steps)...)
	violations = append(violations, validateSteps("jobs.tests", c.Jobs.Tests.Steps)...)
	violations = append(violations, validateSteps("jobs.build", c.Jobs.Build.Steps)...)
	violations = append(violations, validateSteps("jobs.publish", c.Jobs.Publish.Steps)...)

	if c.Cache.Enabled && len(c.Cache.Manifests) == 0 {
		violations = append(violations, "cache.manifests must name at least one manifest when caching is enabled")
	}

	switch c.Artifacts.Store.Kind {
	case StoreLocal:
	case StoreS3:
		if strings.TrimSpace(c.Artifacts.Store.S3.Bucket) == "" {
			violations = append(violations, "artifacts.store.s3.bucket is required for the s3 store")
		}
	default:
		violations = append(violations, fmt.Sprintf("artifacts.store.kind %q is not supported", c.Artifacts.Store.Kind))
	}

	if c.Trigger.Endpoint != "" {
		u, err := url.Parse(c.Trigger.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			violations = append(violations, fmt.Sprintf("trigger.endpoint %q is not an http(s) URL", c.Trigger.Endpoint))
		}
	}
	if c.Trigger.TimeoutSeconds <= 0 {
		violations = append(violations, "trigger.timeoutSeconds must be positive")
	}

	if c.Notes.MaxCommits <= 0 {
		violations = append(violations, "notes.maxCommits must be positive")
	}

	if len(violations) > 0 {
		return errors.New(
			errors.CodeInvalidConfig,
			fmt.Sprintf("configuration validation failed: %s", strings.Join(violations, "; ")),
		)
	}

	return nil
}

func validateSteps(job string, steps []Step) []string {
	var violations []string
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if strings.TrimSpace(s.Name) == "" {
			violations = append(violations, fmt.Sprintf("%s.steps[%d].name must not be empty", job, i))
		}
		if strings.TrimSpace(s.Run) == "" {
			violations = append(violations, fmt.Sprintf("%s.steps[%d].run must not be empty", job, i))
		}
		if s.Name != "" && seen[s.Name] {
			violations = append(violations, fmt.Sprintf("%s.steps[%d] duplicates step name %q", job, i, s.Name))
		}
		seen[s.Name] = true
	}
	return violations
}
