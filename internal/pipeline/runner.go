// Package pipeline executes the release job graph for one build: install,
// lint and tests, build, publish, trigger. Jobs run concurrently where
// their dependencies allow. Publish and trigger are gated on the
// promotion decision, and trigger additionally requires the publish job
// to succeed, so an unpublished build can never reach the deployment
// pipeline. Every run leaves a JSON report behind, successful or not.
package pipeline

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/opendatateam/hydra-release/internal/artifact"
	"github.com/opendatateam/hydra-release/internal/cache"
	"github.com/opendatateam/hydra-release/internal/config"
	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/executor"
	"github.com/opendatateam/hydra-release/internal/fsys"
	"github.com/opendatateam/hydra-release/internal/gitmeta"
	"github.com/opendatateam/hydra-release/internal/notes"
	"github.com/opendatateam/hydra-release/internal/release"
	"github.com/opendatateam/hydra-release/internal/secrets"
	"github.com/opendatateam/hydra-release/internal/trigger"
)

// History is the repository surface the runner consults for context
// enrichment and release notes. *gitmeta.Repo implements it.
type History interface {
	Describe(ctx context.Context) (*gitmeta.BuildInfo, error)
	TagsAt(ctx context.Context, hash string) ([]string, error)
	LatestReleaseTag(ctx context.Context, filter gitmeta.TagFilter) (*gitmeta.ReleaseTag, error)
	CommitsSince(ctx context.Context, since string, maxCount int) ([]gitmeta.Commit, error)
}

var _ History = (*gitmeta.Repo)(nil)

// Trigger posts the downstream deployment request.
type Trigger interface {
	Invoke(ctx context.Context, payload trigger.Payload) error
}

var _ Trigger = (*trigger.Client)(nil)

// Runner executes pipeline runs for one loaded configuration.
type Runner struct {
	cfg *config.Config

	fs      fsys.Filesystem
	shell   *executor.Shell
	logger  *slog.Logger
	secrets *secrets.Manager
	store   artifact.Store
	cache   *cache.Cache
	repo    History
	trigger Trigger

	workDir     string
	runsDir     string
	skipTrigger bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithFilesystem sets the filesystem all file access goes through.
// Defaults to the OS filesystem rooted at "/", so the absolute default
// cache and report locations resolve as expected.
func WithFilesystem(filesystem fsys.Filesystem) Option {
	return func(r *Runner) {
		r.fs = filesystem
	}
}

// WithWorkDir sets the workspace directory that configuration-relative
// paths and step commands resolve against. Defaults to the process
// working directory.
func WithWorkDir(dir string) Option {
	return func(r *Runner) {
		r.workDir = dir
	}
}

// WithLogger sets the logger used for run progress.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithShell sets the shell that runs step scripts.
func WithShell(shell *executor.Shell) Option {
	return func(r *Runner) {
		r.shell = shell
	}
}

// WithSecrets sets the secret manager. The default registers the env and
// file providers, plus aws when the configuration references it.
func WithSecrets(manager *secrets.Manager) Option {
	return func(r *Runner) {
		r.secrets = manager
	}
}

// WithStore sets the artifact store, overriding the configured backend.
func WithStore(store artifact.Store) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithCache sets the dependency cache, overriding the default location.
func WithCache(c *cache.Cache) Option {
	return func(r *Runner) {
		r.cache = c
	}
}

// WithRepo attaches repository metadata for release notes generation.
func WithRepo(repo History) Option {
	return func(r *Runner) {
		r.repo = repo
	}
}

// WithTrigger sets the downstream trigger client, overriding the one
// built from the configured endpoint.
func WithTrigger(t Trigger) Option {
	return func(r *Runner) {
		r.trigger = t
	}
}

// WithRunsDir sets the directory run reports are written under.
func WithRunsDir(dir string) Option {
	return func(r *Runner) {
		r.runsDir = dir
	}
}

// WithSkipTrigger disables the trigger job regardless of the promotion
// decision.
func WithSkipTrigger(skip bool) Option {
	return func(r *Runner) {
		r.skipTrigger = skip
	}
}

// New creates a Runner for the given configuration.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "pipeline configuration is required")
	}

	r := &Runner{
		cfg:     cfg,
		logger:  slog.Default(),
		runsDir: DefaultRunsDir(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.fs == nil {
		r.fs = fsys.NewOSFS("/")
	}
	if r.shell == nil {
		r.shell = executor.NewShell("")
	}
	if r.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to resolve working directory")
		}
		r.workDir = wd
	}

	return r, nil
}

// resolution is the immutable per-run outcome of version resolution and
// the promotion decision. It is computed once, before any job starts,
// and referenced read-only afterwards.
type resolution struct {
	ctx      release.BuildContext
	version  release.Version
	decision release.Decision
	rules    *release.Rules
}

// resolve computes the version and promotion decision for the context.
// The declared base version falls back to the configured one when the
// environment did not provide it.
func (r *Runner) resolve(bctx release.BuildContext) (*resolution, error) {
	if bctx.BaseVersion == "" {
		bctx.BaseVersion = r.cfg.Release.BaseVersion
	}

	rules, err := r.cfg.Rules()
	if err != nil {
		return nil, err
	}

	version, err := release.ResolveVersion(bctx, rules.PublishBranch())
	if err != nil {
		return nil, err
	}

	decision, err := rules.Decide(bctx)
	if err != nil {
		return nil, err
	}

	return &resolution{
		ctx:      bctx,
		version:  version,
		decision: decision,
		rules:    rules,
	}, nil
}

// Run executes the full pipeline for the build context and returns the
// run record. The record is written as a JSON report whatever the
// outcome; release notes are added when the run published.
func (r *Runner) Run(ctx context.Context, bctx release.BuildContext) (*RunRecord, error) {
	res, err := r.resolve(bctx)
	if err != nil {
		return nil, err
	}
	if err := r.setup(ctx); err != nil {
		return nil, err
	}

	rec := &RunRecord{
		ID:          uuid.NewString(),
		App:         r.cfg.App,
		Environment: r.cfg.Environment,
		Version:     res.version.String(),
		Context:     res.ctx,
		Decision:    res.decision,
		Status:      StatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	r.logger.InfoContext(ctx, "pipeline run starting",
		"run_id", rec.ID,
		"app", rec.App,
		"version", rec.Version,
		"publish", res.decision.ShouldPublish,
		"trigger_downstream", res.decision.ShouldTriggerDownstream,
	)

	var uploaded []artifact.Artifact
	graph, err := r.graph(res, &uploaded)
	if err != nil {
		return nil, err
	}

	results, runErr := graph.Execute(ctx, r.logger)

	completed := time.Now().UTC()
	rec.CompletedAt = &completed
	rec.Jobs = results
	rec.Artifacts = uploaded
	rec.Status = overallStatus(results)

	if published := rec.Job(config.JobPublish); published != nil && published.Status == StatusSuccess {
		r.writeNotes(ctx, rec, res)
	}

	path, reportErr := WriteReport(r.fs, r.runsDir, rec)
	switch {
	case reportErr != nil && runErr == nil:
		runErr = reportErr
	case reportErr != nil:
		r.logger.WarnContext(ctx, "failed to write run report", "error", reportErr)
	default:
		r.logger.InfoContext(ctx, "run report written", "path", path)
	}

	r.logger.InfoContext(ctx, "pipeline run finished",
		"run_id", rec.ID, "status", rec.Status.String())

	return rec, runErr
}

// writeNotes generates release notes next to the run report. Notes are
// informational: failures are logged, never fatal to a run that already
// published.
func (r *Runner) writeNotes(ctx context.Context, rec *RunRecord, res *resolution) {
	if !r.cfg.Notes.Enabled || r.repo == nil {
		return
	}

	// The tag that triggered this run must not count as the previous
	// release, or a tag build would always see an empty change set.
	filter := func(name string) bool {
		return res.rules.MatchesReleaseTag(name) && name != res.ctx.Tag
	}

	prevName, prevHash := "", ""
	latest, err := r.repo.LatestReleaseTag(ctx, filter)
	switch {
	case err == nil:
		prevName, prevHash = latest.Name, latest.Hash
	case stderrors.Is(err, gitmeta.ErrNoReleaseTag):
		// First release: the whole reachable history, capped below.
	default:
		r.logger.WarnContext(ctx, "failed to determine previous release tag", "error", err)
		return
	}

	commits, err := r.repo.CommitsSince(ctx, prevHash, r.cfg.Notes.MaxCommits)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to read commit history", "error", err)
		return
	}

	doc := notes.Build(r.cfg.App, rec.Version, prevName, commits)
	path := filepath.Join(r.runsDir, rec.ID, NotesFile)
	if err := r.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.logger.WarnContext(ctx, "failed to create run directory", "error", err)
		return
	}
	if err := r.fs.WriteFile(path, []byte(doc.Markdown()), 0o644); err != nil {
		r.logger.WarnContext(ctx, "failed to write release notes", "path", path, "error", err)
		return
	}

	r.logger.InfoContext(ctx, "release notes written", "path", path, "commits", len(commits))
}

// PlanEntry is one job of a dry-run plan.
type PlanEntry struct {
	// Job is the job name.
	Job string `json:"job"`

	// Needs lists the jobs this one waits for.
	Needs []string `json:"needs,omitempty"`

	// WillRun reports whether the job's gate admits it, assuming its
	// dependencies succeed.
	WillRun bool `json:"will_run"`
}

// Plan is the dry-run view of a pipeline run: the resolved version, the
// promotion decision, and the jobs that would execute, in order.
type Plan struct {
	App      string           `json:"app"`
	Version  string           `json:"version"`
	Decision release.Decision `json:"decision"`
	Jobs     []PlanEntry      `json:"jobs"`
}

// Plan resolves the version and decision for the context and describes
// the jobs a run would execute, without executing anything and without
// writing a report.
func (r *Runner) Plan(bctx release.BuildContext) (*Plan, error) {
	res, err := r.resolve(bctx)
	if err != nil {
		return nil, err
	}

	graph, err := r.graph(res, nil)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Job, len(graph.jobs))
	for _, job := range graph.jobs {
		byName[job.Name] = job
	}

	plan := &Plan{
		App:      r.cfg.App,
		Version:  res.version.String(),
		Decision: res.decision,
	}
	for _, name := range graph.Order() {
		job := byName[name]
		plan.Jobs = append(plan.Jobs, PlanEntry{
			Job:     name,
			Needs:   job.Needs,
			WillRun: job.When == nil || job.When(),
		})
	}

	return plan, nil
}

// Trigger invokes the downstream deployment for an already-published
// version, outside a pipeline run. The promotion decision is not
// consulted; the caller decides.
func (r *Runner) Trigger(ctx context.Context, version release.Version) error {
	if r.secrets == nil {
		manager, err := r.buildSecrets(ctx)
		if err != nil {
			return err
		}
		r.secrets = manager
	}

	client, err := r.triggerClient(ctx)
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "triggering downstream deployment",
		"app", r.cfg.App, "version", version.String(), "environment", r.cfg.Environment)

	return client.Invoke(ctx, r.triggerPayload(version))
}

// EnrichContext fills build-context fields the environment left empty
// from repository discovery. The commit hash always backfills. Branch and
// tag backfill only when the environment provided neither, so a CI tag
// build is not turned back into a branch build; and only tags accepted
// by the promotion rules are adopted, keeping the verbatim-tag version
// path behind the same validation the rules apply.
func EnrichContext(ctx context.Context, bctx release.BuildContext, repo History, rules *release.Rules) (release.BuildContext, error) {
	if repo == nil {
		return bctx, nil
	}

	info, err := repo.Describe(ctx)
	if err != nil {
		return bctx, err
	}

	if bctx.CommitSHA == "" {
		bctx.CommitSHA = info.CommitSHA
	}

	if bctx.Branch == "" && bctx.Tag == "" {
		bctx.Branch = info.Branch

		tags, err := repo.TagsAt(ctx, info.CommitSHA)
		if err != nil {
			return bctx, err
		}
		for _, tag := range tags {
			if rules.MatchesReleaseTag(tag) {
				bctx.Tag = tag
				break
			}
		}
	}

	return bctx, nil
}
