package release

import (
	"regexp"

	"github.com/opendatateam/hydra-release/internal/errors"
)

// Built-in promotion rule defaults. The patterns are implicitly anchored:
// a name must match in full.
const (
	DefaultPublishBranch = "main"

	// DefaultTagPattern matches explicit release tags like "v2", "v2.0.0".
	DefaultTagPattern = `v[0-9]+(\.[0-9]+)*`

	// DefaultMaintenancePattern matches numeric maintenance branches like "1.5".
	DefaultMaintenancePattern = `[0-9]+(\.[0-9]+)+`

	// DefaultRCPattern matches release-candidate branches like "rc12".
	DefaultRCPattern = `rc[0-9]+`
)

// Decision is the promotion outcome for one build.
type Decision struct {
	// ShouldPublish reports whether the build's artifact is published to the
	// package index.
	ShouldPublish bool `json:"should_publish"`

	// ShouldTriggerDownstream reports whether the downstream deployment
	// pipeline is invoked after a successful publish. Only publish-branch
	// builds trigger; tags and maintenance/rc branches publish without
	// deploying.
	ShouldTriggerDownstream bool `json:"should_trigger_downstream"`
}

// Validate rejects inconsistent decisions. Triggering deployment of an
// unpublished artifact is unsafe, so trigger-without-publish is fatal.
// The built-in rules cannot produce it; user-configured rules can.
func (d Decision) Validate() error {
	if d.ShouldTriggerDownstream && !d.ShouldPublish {
		return errors.New(errors.CodeInvalidConfig,
			"promotion rules trigger a downstream deployment without publishing")
	}
	return nil
}

// RuleConfig is the raw promotion rule configuration. Empty fields fall back
// to the built-in defaults when compiled.
type RuleConfig struct {
	PublishBranch      string
	TagPattern         string
	MaintenancePattern string
	RCPattern          string
}

// Rules are compiled promotion rules. Compile once, query per build.
type Rules struct {
	publishBranch string
	tag           *regexp.Regexp
	maintenance   *regexp.Regexp
	rc            *regexp.Regexp
}

// CompileRules compiles the rule configuration into a queryable rule set.
// A malformed pattern or an empty publish branch is a configuration error.
func CompileRules(cfg RuleConfig) (*Rules, error) {
	if cfg.PublishBranch == "" {
		cfg.PublishBranch = DefaultPublishBranch
	}
	if cfg.TagPattern == "" {
		cfg.TagPattern = DefaultTagPattern
	}
	if cfg.MaintenancePattern == "" {
		cfg.MaintenancePattern = DefaultMaintenancePattern
	}
	if cfg.RCPattern == "" {
		cfg.RCPattern = DefaultRCPattern
	}

	rules := &Rules{publishBranch: cfg.PublishBranch}
	for _, p := range []struct {
		name    string
		pattern string
		dst     **regexp.Regexp
	}{
		{"tag", cfg.TagPattern, &rules.tag},
		{"maintenance", cfg.MaintenancePattern, &rules.maintenance},
		{"rc", cfg.RCPattern, &rules.rc},
	} {
		re, err := regexp.Compile("^(?:" + p.pattern + ")$")
		if err != nil {
			return nil, errors.WrapWithContext(
				err,
				errors.CodeInvalidConfig,
				"invalid promotion pattern",
				map[string]interface{}{
					"rule":    p.name,
					"pattern": p.pattern,
				},
			)
		}
		*p.dst = re
	}

	return rules, nil
}

// PublishBranch returns the configured publish branch name.
func (r *Rules) PublishBranch() string {
	return r.publishBranch
}

// MatchesReleaseTag reports whether a tag name is a release tag.
func (r *Rules) MatchesReleaseTag(tag string) bool {
	return tag != "" && r.tag.MatchString(tag)
}

// Decide evaluates the promotion rules for the context.
//
// A build publishes when the tag is a release tag, the branch is the publish
// branch, or the branch is a maintenance (numeric dotted) or release-candidate
// branch. Only the publish branch triggers the downstream deployment; a tagged
// release on any other branch publishes but is never deployed downstream.
// That asymmetry is deliberate and preserved.
//
// This is the single evaluated decision. The scheduler queries it instead of
// reproducing the rules as static branch/tag filters, and additionally wires
// the trigger job to require a successful publish job, so the ordering holds
// structurally and not just in these flags.
//
// Decide is a pure function over the provided metadata: no retries apply, and
// any failure is a configuration error, fatal to the run.
func (r *Rules) Decide(ctx BuildContext) (Decision, error) {
	d := Decision{
		ShouldPublish: r.MatchesReleaseTag(ctx.Tag) ||
			ctx.Branch == r.publishBranch ||
			(ctx.Branch != "" && r.maintenance.MatchString(ctx.Branch)) ||
			(ctx.Branch != "" && r.rc.MatchString(ctx.Branch)),
		ShouldTriggerDownstream: ctx.Branch == r.publishBranch,
	}
	if err := d.Validate(); err != nil {
		return Decision{}, err
	}
	return d, nil
}
