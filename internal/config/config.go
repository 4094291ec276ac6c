// Package config provides parsing, validation, and convenient access to the
// hydra-release pipeline configuration, defined in CUE format.
//
// User configurations are unified with an embedded CUE schema, so defaults
// and structural constraints live in one place; the Go validator only adds
// the checks CUE cannot express (pattern compilation, store coherence,
// endpoint shape).
//
// # Basic Usage
//
// Load a pipeline configuration:
//
//	ctx := context.Background()
//	fs := fsys.NewOSFS(".")
//
//	cfg, err := config.Load(ctx, fs, "hydra-release.cue")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rules, err := cfg.Rules()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A missing file at the default path is not an error; the built-in defaults
// drive the pipeline for the hydra application out of the box:
//
//	cfg, err := config.LoadOrDefault(ctx, fs, config.DefaultConfigFile)
package config

import (
	"github.com/opendatateam/hydra-release/internal/release"
)

// DefaultConfigFile is the configuration path relative to the repository root.
const DefaultConfigFile = "hydra-release.cue"

// SupportedSchemaVersion is the schema version this package supports.
// Configurations declaring an incompatible schemaVersion fail to load.
const SupportedSchemaVersion = "1.0.0"

// Built-in job names, in dependency order.
const (
	JobInstall = "install"
	JobLint    = "lint"
	JobTests   = "tests"
	JobBuild   = "build"
	JobPublish = "publish"
	JobTrigger = "trigger"
)

// Config is the decoded pipeline configuration.
type Config struct {
	SchemaVersion string `json:"schemaVersion"`

	// App is the target application name forwarded to the downstream
	// deployment pipeline.
	App string `json:"app"`

	// Environment is the deploy environment name.
	Environment string `json:"environment"`

	Release   ReleaseConfig   `json:"release"`
	Jobs      JobsConfig      `json:"jobs"`
	Cache     CacheConfig     `json:"cache"`
	Artifacts ArtifactsConfig `json:"artifacts"`
	Trigger   TriggerConfig   `json:"trigger"`
	Secrets   SecretsConfig   `json:"secrets"`
	Notes     NotesConfig     `json:"notes"`
}

// ReleaseConfig configures version resolution and promotion.
type ReleaseConfig struct {
	BaseVersion        string `json:"baseVersion"`
	PublishBranch      string `json:"publishBranch"`
	TagPattern         string `json:"tagPattern"`
	MaintenancePattern string `json:"maintenancePattern"`
	RCPattern          string `json:"rcPattern"`
	VersionFile        string `json:"versionFile"`
}

// Step is a single named command executed through the system shell.
type Step struct {
	Name string `json:"name"`
	Run  string `json:"run"`
}

// Job is a list of steps with optional extra environment.
type Job struct {
	Steps []Step            `json:"steps"`
	Env   map[string]string `json:"env"`
}

// TestsConfig is the tests job plus its parallel split width.
type TestsConfig struct {
	Steps       []Step            `json:"steps"`
	Env         map[string]string `json:"env"`
	Parallelism int               `json:"parallelism"`
}

// JobsConfig holds the per-job step lists.
type JobsConfig struct {
	Install Job         `json:"install"`
	Lint    Job         `json:"lint"`
	Tests   TestsConfig `json:"tests"`
	Build   Job         `json:"build"`
	Publish Job         `json:"publish"`
}

// CacheConfig configures the dependency cache around the install job.
type CacheConfig struct {
	Enabled   bool     `json:"enabled"`
	KeyPrefix string   `json:"keyPrefix"`
	Manifests []string `json:"manifests"`
	Paths     []string `json:"paths"`
}

// Store kinds for ArtifactsConfig.
const (
	StoreLocal = "local"
	StoreS3    = "s3"
)

// ArtifactsConfig configures artifact storage after a successful build.
type ArtifactsConfig struct {
	Paths []string    `json:"paths"`
	Store StoreConfig `json:"store"`
}

// StoreConfig selects and configures the artifact store backend.
type StoreConfig struct {
	Kind  string           `json:"kind"`
	Local LocalStoreConfig `json:"local"`
	S3    S3StoreConfig    `json:"s3"`
}

// LocalStoreConfig configures the local directory store.
type LocalStoreConfig struct {
	// Dir is the store root. Empty means the default cache location.
	Dir string `json:"dir"`
}

// S3StoreConfig configures the S3-backed store.
type S3StoreConfig struct {
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
	Region string `json:"region"`
}

// TriggerConfig configures the downstream deployment trigger.
type TriggerConfig struct {
	// Endpoint is the deployment pipeline URL. Empty disables the trigger job.
	Endpoint string `json:"endpoint"`

	// TokenSecret is a secret reference resolved at trigger time.
	TokenSecret string `json:"tokenSecret"`

	// Variables is forwarded verbatim with the trigger payload.
	Variables string `json:"variables"`

	TimeoutSeconds int `json:"timeoutSeconds"`
}

// SecretsConfig configures secret resolution.
type SecretsConfig struct {
	DefaultProvider string `json:"defaultProvider"`
	AWSRegion       string `json:"awsRegion"`
}

// NotesConfig configures release notes generation on publishing runs.
type NotesConfig struct {
	Enabled    bool `json:"enabled"`
	MaxCommits int  `json:"maxCommits"`
}

// Default returns the built-in configuration: the pipeline for the hydra
// application with no configured job steps. Identical to loading an empty
// configuration file.
func Default() *Config {
	return &Config{
		SchemaVersion: SupportedSchemaVersion,
		App:           "hydra",
		Environment:   "dev",
		Release: ReleaseConfig{
			PublishBranch:      release.DefaultPublishBranch,
			TagPattern:         release.DefaultTagPattern,
			MaintenancePattern: release.DefaultMaintenancePattern,
			RCPattern:          release.DefaultRCPattern,
			VersionFile:        release.DefaultVersionFile,
		},
		Jobs: JobsConfig{
			Tests: TestsConfig{Parallelism: 4},
		},
		Cache: CacheConfig{
			Enabled:   true,
			KeyPrefix: "deps-v1",
			Manifests: []string{"pyproject.toml", "poetry.lock"},
			Paths:     []string{".venv"},
		},
		Artifacts: ArtifactsConfig{
			Paths: []string{"dist"},
			Store: StoreConfig{
				Kind: StoreLocal,
				S3:   S3StoreConfig{Prefix: "hydra-release"},
			},
		},
		Trigger: TriggerConfig{
			TimeoutSeconds: 30,
		},
		Secrets: SecretsConfig{
			DefaultProvider: "env",
		},
		Notes: NotesConfig{
			Enabled:    true,
			MaxCommits: 200,
		},
	}
}

// Rules compiles the promotion rules from the release configuration.
func (c *Config) Rules() (*release.Rules, error) {
	return release.CompileRules(release.RuleConfig{
		PublishBranch:      c.Release.PublishBranch,
		TagPattern:         c.Release.TagPattern,
		MaintenancePattern: c.Release.MaintenancePattern,
		RCPattern:          c.Release.RCPattern,
	})
}

// TriggerEnabled reports whether a trigger endpoint is configured.
func (c *Config) TriggerEnabled() bool {
	return c.Trigger.Endpoint != ""
}
