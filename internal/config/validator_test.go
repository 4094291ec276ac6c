package config

import (
	"strings"
	"testing"

	"github.com/opendatateam/hydra-release/internal/errors"
)

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for nil config, got nil")
	}
	if !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Errorf("expected code %s, got %s", errors.CodeInvalidInput, errors.GetCode(err))
	}
}

func TestValidate_DefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration should validate, got: %v", err)
	}
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		mention string
	}{
		{
			name:    "empty app",
			mutate:  func(c *Config) { c.App = "  " },
			mention: "app",
		},
		{
			name:    "empty environment",
			mutate:  func(c *Config) { c.Environment = "" },
			mention: "environment",
		},
		{
			name:    "empty publish branch",
			mutate:  func(c *Config) { c.Release.PublishBranch = "" },
			mention: "publishBranch",
		},
		{
			name:    "empty version file",
			mutate:  func(c *Config) { c.Release.VersionFile = "" },
			mention: "versionFile",
		},
		{
			name:    "malformed tag pattern",
			mutate:  func(c *Config) { c.Release.TagPattern = "v[" },
			mention: "promotion patterns",
		},
		{
			name:    "non-positive parallelism",
			mutate:  func(c *Config) { c.Jobs.Tests.Parallelism = 0 },
			mention: "parallelism",
		},
		{
			name: "step without a name",
			mutate: func(c *Config) {
				c.Jobs.Build.Steps = []Step{{Run: "make build"}}
			},
			mention: "jobs.build.steps[0].name",
		},
		{
			name: "step without a command",
			mutate: func(c *Config) {
				c.Jobs.Publish.Steps = []Step{{Name: "upload"}}
			},
			mention: "jobs.publish.steps[0].run",
		},
		{
			name: "duplicate step names",
			mutate: func(c *Config) {
				c.Jobs.Tests.Steps = []Step{
					{Name: "pytest", Run: "pytest unit"},
					{Name: "pytest", Run: "pytest integration"},
				}
			},
			mention: "duplicates",
		},
		{
			name: "cache enabled without manifests",
			mutate: func(c *Config) {
				c.Cache.Manifests = nil
			},
			mention: "cache.manifests",
		},
		{
			name: "unknown store kind",
			mutate: func(c *Config) {
				c.Artifacts.Store.Kind = "ftp"
			},
			mention: "store.kind",
		},
		{
			name: "s3 store without bucket",
			mutate: func(c *Config) {
				c.Artifacts.Store.Kind = StoreS3
			},
			mention: "bucket",
		},
		{
			name: "trigger endpoint without scheme",
			mutate: func(c *Config) {
				c.Trigger.Endpoint = "deploy.example.org/pipelines"
			},
			mention: "trigger.endpoint",
		},
		{
			name: "trigger endpoint with bad scheme",
			mutate: func(c *Config) {
				c.Trigger.Endpoint = "ftp://deploy.example.org"
			},
			mention: "trigger.endpoint",
		},
		{
			name: "non-positive trigger timeout",
			mutate: func(c *Config) {
				c.Trigger.TimeoutSeconds = -1
			},
			mention: "timeoutSeconds",
		},
		{
			name: "non-positive notes cap",
			mutate: func(c *Config) {
				c.Notes.MaxCommits = 0
			},
			mention: "maxCommits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.IsCode(err, errors.CodeInvalidConfig) {
				t.Errorf("expected code %s, got %s", errors.CodeInvalidConfig, errors.GetCode(err))
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("expected error to mention %q, got: %v", tt.mention, err)
			}
		})
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	cfg := Default()
	cfg.App = ""
	cfg.Environment = ""
	cfg.Notes.MaxCommits = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}

	msg := err.Error()
	for _, want := range []string{"app", "environment", "maxCommits"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected combined error to mention %q, got: %v", want, msg)
		}
	}
}

func TestValidate_DisabledCacheSkipsManifestCheck(t *testing.T) {
	cfg := Default()
	cfg.Cache.Enabled = false
	cfg.Cache.Manifests = nil

	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled cache should not require manifests, got: %v", err)
	}
}
