package pipeline

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opendatateam/hydra-release/internal/artifact"
	"github.com/opendatateam/hydra-release/internal/cache"
	"github.com/opendatateam/hydra-release/internal/config"
	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/executor"
	"github.com/opendatateam/hydra-release/internal/release"
	"github.com/opendatateam/hydra-release/internal/secrets"
	"github.com/opendatateam/hydra-release/internal/trigger"
)

// EnvStepVersion is the environment variable carrying the resolved
// version into every step script. Step environments from the
// configuration may override it.
const EnvStepVersion = "HYDRA_RELEASE_VERSION"

// setup builds the collaborators the options did not supply. It runs
// once per call to Run, before any job starts.
func (r *Runner) setup(ctx context.Context) error {
	if r.cache == nil && r.cfg.Cache.Enabled {
		r.cache = cache.New(r.fs, cache.DefaultDir())
	}

	if r.store == nil && len(r.cfg.Artifacts.Paths) > 0 {
		store, err := r.buildStore(ctx)
		if err != nil {
			return err
		}
		r.store = store
	}

	if r.secrets == nil {
		manager, err := r.buildSecrets(ctx)
		if err != nil {
			return err
		}
		r.secrets = manager
	}

	return nil
}

func (r *Runner) buildStore(ctx context.Context) (artifact.Store, error) {
	switch r.cfg.Artifacts.Store.Kind {
	case config.StoreS3:
		s3cfg := r.cfg.Artifacts.Store.S3
		return artifact.NewS3Store(ctx, r.fs, artifact.S3Config{
			Bucket: s3cfg.Bucket,
			Prefix: s3cfg.Prefix,
			Region: s3cfg.Region,
		}, artifact.WithS3Logger(r.logger))
	case config.StoreLocal, "":
		if dir := r.cfg.Artifacts.Store.Local.Dir; dir != "" {
			return artifact.NewLocalStore(r.fs, r.workPath(dir)), nil
		}
		return artifact.NewLocalStore(r.fs, ""), nil
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig,
			"unknown artifact store kind %q", r.cfg.Artifacts.Store.Kind)
	}
}

// buildSecrets registers the env and file providers. The aws provider
// dials AWS configuration on construction, so it is registered only when
// the configuration references it.
func (r *Runner) buildSecrets(ctx context.Context) (*secrets.Manager, error) {
	manager := secrets.NewManager(r.cfg.Secrets.DefaultProvider)
	if err := manager.Register(secrets.NewEnvProvider()); err != nil {
		return nil, err
	}
	if err := manager.Register(secrets.NewFileProvider(r.fs)); err != nil {
		return nil, err
	}

	if r.usesAWSSecrets() {
		provider, err := secrets.NewAWSProvider(ctx, r.cfg.Secrets.AWSRegion,
			secrets.WithAWSLogger(r.logger))
		if err != nil {
			return nil, err
		}
		if err := manager.Register(provider); err != nil {
			return nil, err
		}
	}

	return manager, nil
}

func (r *Runner) usesAWSSecrets() bool {
	if r.cfg.Secrets.DefaultProvider == "aws" {
		return true
	}
	for _, value := range r.cfg.Jobs.Publish.Env {
		if strings.HasPrefix(value, "aws://") {
			return true
		}
	}
	return strings.HasPrefix(r.cfg.Trigger.TokenSecret, "aws://")
}

// graph assembles the job graph for one resolution. Install fans out to
// lint and tests, both feed build, build feeds publish, publish feeds
// trigger. The trigger job depends on publish so it is skipped whenever
// publish fails or is itself skipped, and its gate additionally requires
// the promotion decision to ask for a downstream deployment.
func (r *Runner) graph(res *resolution, uploaded *[]artifact.Artifact) (*Graph, error) {
	jobs := r.cfg.Jobs

	return NewGraph(
		Job{
			Name: config.JobInstall,
			Run:  r.installJob(jobs.Install, res.version),
		},
		Job{
			Name:  config.JobLint,
			Needs: []string{config.JobInstall},
			Run:   r.commandJob(config.JobLint, jobs.Lint.Steps, jobs.Lint.Env, res.version),
		},
		Job{
			Name:  config.JobTests,
			Needs: []string{config.JobInstall},
			Run:   r.testsJob(jobs.Tests, res.version),
		},
		Job{
			Name:  config.JobBuild,
			Needs: []string{config.JobLint, config.JobTests},
			Run:   r.buildJob(jobs.Build, res.version, uploaded),
		},
		Job{
			Name:  config.JobPublish,
			Needs: []string{config.JobBuild},
			When:  func() bool { return res.decision.ShouldPublish },
			Run:   r.publishJob(jobs.Publish, res.version),
		},
		Job{
			Name:  config.JobTrigger,
			Needs: []string{config.JobPublish},
			When: func() bool {
				return res.decision.ShouldTriggerDownstream && !r.skipTrigger && r.triggerConfigured()
			},
			Run: r.triggerJob(res.version),
		},
	)
}

func (r *Runner) triggerConfigured() bool {
	return r.trigger != nil || r.cfg.TriggerEnabled()
}

// installJob restores the dependency cache, runs the install steps, and
// saves the cache back. Cache problems never fail the job.
func (r *Runner) installJob(job config.Job, version release.Version) func(ctx context.Context) ([]StepResult, error) {
	return func(ctx context.Context) ([]StepResult, error) {
		key := r.cacheKey(ctx)
		if key != "" {
			restored, err := r.cache.Restore(ctx, key)
			switch {
			case err != nil:
				r.logger.WarnContext(ctx, "dependency cache restore failed", "key", key, "error", err)
			case restored:
				r.logger.InfoContext(ctx, "dependency cache restored", "key", key)
			default:
				r.logger.InfoContext(ctx, "dependency cache miss", "key", key)
			}
		}

		results, err := r.runSteps(ctx, config.JobInstall, job.Steps, job.Env, version)
		if err != nil {
			return results, err
		}

		if key != "" {
			if err := r.cache.Save(ctx, key, r.workPaths(r.cfg.Cache.Paths)); err != nil {
				r.logger.WarnContext(ctx, "dependency cache save failed", "key", key, "error", err)
			} else {
				r.logger.InfoContext(ctx, "dependency cache saved", "key", key)
			}
		}

		return results, nil
	}
}

// cacheKey computes the manifest-derived cache key, or "" when caching
// is off or the key cannot be computed.
func (r *Runner) cacheKey(ctx context.Context) string {
	if r.cache == nil || !r.cfg.Cache.Enabled {
		return ""
	}
	key, err := r.cache.Key(r.cfg.Cache.KeyPrefix, r.workPaths(r.cfg.Cache.Manifests)...)
	if err != nil {
		r.logger.WarnContext(ctx, "dependency cache disabled", "error", err)
		return ""
	}
	return key
}

func (r *Runner) commandJob(name string, steps []config.Step, env map[string]string, version release.Version) func(ctx context.Context) ([]StepResult, error) {
	return func(ctx context.Context) ([]StepResult, error) {
		return r.runSteps(ctx, name, steps, env, version)
	}
}

// testsJob runs the test steps, spreading them over the configured
// number of workers. Step results keep their declared order whatever
// the interleaving.
func (r *Runner) testsJob(tests config.TestsConfig, version release.Version) func(ctx context.Context) ([]StepResult, error) {
	return func(ctx context.Context) ([]StepResult, error) {
		parallelism := tests.Parallelism
		if parallelism < 1 {
			parallelism = 1
		}
		if parallelism > len(tests.Steps) {
			parallelism = len(tests.Steps)
		}
		if parallelism <= 1 {
			return r.runSteps(ctx, config.JobTests, tests.Steps, tests.Env, version)
		}

		results := make([]StepResult, len(tests.Steps))
		for i, step := range tests.Steps {
			results[i] = StepResult{Name: step.Name, Command: step.Run, Status: StatusPending}
		}

		eg, egctx := errgroup.WithContext(ctx)
		for w := 0; w < parallelism; w++ {
			worker := w
			eg.Go(func() error {
				for i := worker; i < len(tests.Steps); i += parallelism {
					if err := egctx.Err(); err != nil {
						return err
					}
					result, err := r.runStep(egctx, config.JobTests, tests.Steps[i], tests.Env, version)
					results[i] = result
					if err != nil {
						return err
					}
				}
				return nil
			})
		}
		err := eg.Wait()

		for i := range results {
			if results[i].Status == StatusPending {
				results[i].Status = StatusSkipped
			}
		}

		return results, err
	}
}

// buildJob writes the version file, runs the packaging steps, and stores
// whatever artifacts they produced.
func (r *Runner) buildJob(job config.Job, version release.Version, uploaded *[]artifact.Artifact) func(ctx context.Context) ([]StepResult, error) {
	return func(ctx context.Context) ([]StepResult, error) {
		versionFile := r.cfg.Release.VersionFile
		if versionFile == "" {
			versionFile = release.DefaultVersionFile
		}
		path := r.workPath(versionFile)
		if err := release.WriteVersionFile(r.fs, path, version); err != nil {
			return nil, errors.Wrap(err, errors.CodeBuildFailed, "failed to write version file")
		}
		r.logger.InfoContext(ctx, "version file written", "path", path, "version", version.String())

		results, err := r.runSteps(ctx, config.JobBuild, job.Steps, job.Env, version)
		if err != nil {
			return results, err
		}

		if err := r.storeArtifacts(ctx, version, len(job.Steps) > 0, uploaded); err != nil {
			return results, err
		}

		return results, nil
	}
}

// storeArtifacts collects the configured artifact paths and uploads
// them. A project with no packaging steps may legitimately produce
// nothing; a packaging build that produced nothing is an error.
func (r *Runner) storeArtifacts(ctx context.Context, version release.Version, hadSteps bool, uploaded *[]artifact.Artifact) error {
	if r.store == nil || len(r.cfg.Artifacts.Paths) == 0 {
		return nil
	}

	files, err := artifact.Collect(r.fs, r.workPaths(r.cfg.Artifacts.Paths))
	if err != nil {
		if !hadSteps && errors.IsCode(err, errors.CodeNotFound) {
			r.logger.DebugContext(ctx, "no artifacts to store")
			return nil
		}
		return err
	}

	for _, file := range files {
		art, err := r.store.Put(ctx, version.String(), file)
		if err != nil {
			return err
		}
		if uploaded != nil {
			*uploaded = append(*uploaded, *art)
		}
		r.logger.InfoContext(ctx, "artifact stored", "name", art.Name, "size", art.Size)
	}

	return nil
}

// publishJob expands secret references in the job environment and runs
// the publish steps. Resolved secrets stay out of the run report; only
// the variable names appear in errors.
func (r *Runner) publishJob(job config.Job, version release.Version) func(ctx context.Context) ([]StepResult, error) {
	return func(ctx context.Context) ([]StepResult, error) {
		env, err := r.secrets.ExpandEnv(ctx, job.Env)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodePublishFailed, "failed to prepare publish environment")
		}
		return r.runSteps(ctx, config.JobPublish, job.Steps, env, version)
	}
}

func (r *Runner) triggerJob(version release.Version) func(ctx context.Context) ([]StepResult, error) {
	return func(ctx context.Context) ([]StepResult, error) {
		client, err := r.triggerClient(ctx)
		if err != nil {
			return nil, err
		}
		return nil, client.Invoke(ctx, r.triggerPayload(version))
	}
}

func (r *Runner) triggerPayload(version release.Version) trigger.Payload {
	return trigger.Payload{
		Application: r.cfg.App,
		Version:     version.String(),
		Environment: r.cfg.Environment,
		Variables:   r.cfg.Trigger.Variables,
	}
}

func (r *Runner) triggerClient(ctx context.Context) (Trigger, error) {
	if r.trigger != nil {
		return r.trigger, nil
	}

	token := ""
	if ref := r.cfg.Trigger.TokenSecret; ref != "" {
		resolved, err := r.secrets.Resolve(ctx, ref)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeTriggerFailed, "failed to resolve trigger token")
		}
		token = resolved
	}

	opts := []trigger.Option{trigger.WithLogger(r.logger)}
	if r.cfg.Trigger.TimeoutSeconds > 0 {
		opts = append(opts, trigger.WithHTTPClient(&http.Client{
			Timeout: time.Duration(r.cfg.Trigger.TimeoutSeconds) * time.Second,
		}))
	}

	return trigger.New(r.cfg.Trigger.Endpoint, token, opts...)
}

// runSteps executes steps sequentially. On the first failure the
// remaining steps are recorded as skipped.
func (r *Runner) runSteps(ctx context.Context, jobName string, steps []config.Step, env map[string]string, version release.Version) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))
	for i, step := range steps {
		result, err := r.runStep(ctx, jobName, step, env, version)
		results = append(results, result)
		if err != nil {
			for _, skipped := range steps[i+1:] {
				results = append(results, StepResult{
					Name:    skipped.Name,
					Command: skipped.Run,
					Status:  StatusSkipped,
				})
			}
			return results, err
		}
	}
	return results, nil
}

func (r *Runner) runStep(ctx context.Context, jobName string, step config.Step, env map[string]string, version release.Version) (StepResult, error) {
	result := StepResult{
		Name:    step.Name,
		Command: step.Run,
		Status:  StatusRunning,
	}
	started := time.Now().UTC()
	result.StartedAt = &started

	r.logger.InfoContext(ctx, "step started", "job", jobName, "step", step.Name)

	opts := []executor.Option{executor.WithEnvVar(EnvStepVersion, version.String())}
	if len(env) > 0 {
		opts = append(opts, executor.WithEnv(env))
	}
	if r.workDir != "" {
		opts = append(opts, executor.WithWorkingDir(r.workDir))
	}

	execResult, err := r.shell.Run(ctx, step.Run, opts...)

	completed := time.Now().UTC()
	result.CompletedAt = &completed
	if execResult != nil {
		code := execResult.ExitCode
		result.ExitCode = &code
	}

	if err != nil {
		if ctx.Err() != nil {
			result.Status = StatusCancelled
		} else {
			result.Status = StatusFailed
		}
		result.Error = err.Error()

		attrs := []any{"job", jobName, "step", step.Name}
		if result.ExitCode != nil {
			attrs = append(attrs, "exit_code", *result.ExitCode)
		}
		if execResult != nil {
			if tail := stderrTail(execResult.Stderr); tail != "" {
				attrs = append(attrs, "stderr", tail)
			}
		}
		r.logger.ErrorContext(ctx, "step failed", attrs...)

		return result, errors.WrapWithContext(err, errors.CodeExecutionFailed, "step failed",
			map[string]any{"job": jobName, "step": step.Name})
	}

	result.Status = StatusSuccess
	r.logger.InfoContext(ctx, "step finished",
		"job", jobName, "step", step.Name, "duration", completed.Sub(started).String())

	return result, nil
}

// stderrTailLimit caps how much captured stderr makes it into a log
// line.
const stderrTailLimit = 2 << 10

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return s
}

// workPath resolves a configuration-relative path against the workspace
// directory. Absolute paths pass through.
func (r *Runner) workPath(path string) string {
	if path == "" || filepath.IsAbs(path) || r.workDir == "" {
		return path
	}
	return filepath.Join(r.workDir, path)
}

func (r *Runner) workPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = r.workPath(p)
	}
	return out
}
