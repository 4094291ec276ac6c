package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/opendatateam/hydra-release/internal/config"
	"github.com/opendatateam/hydra-release/internal/errors"
	"github.com/opendatateam/hydra-release/internal/fsys"
	"github.com/opendatateam/hydra-release/internal/gitmeta"
	"github.com/opendatateam/hydra-release/internal/pipeline"
	"github.com/opendatateam/hydra-release/internal/release"
)

// environment is everything a subcommand needs: the loaded
// configuration, the filesystem, the workspace root, and the repository
// handle when one is present.
type environment struct {
	cfg     *config.Config
	fs      fsys.Filesystem
	workDir string
	repo    *gitmeta.Repo
}

// loadEnvironment resolves the workspace, loads the configuration, and
// opens the repository. A missing configuration file falls back to the
// built-in defaults; a missing repository is tolerated because CI
// exports the build context through the environment instead.
func loadEnvironment(ctx context.Context, flags *rootFlags) (*environment, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to resolve working directory")
	}

	fs := fsys.NewOSFS("/")

	configPath := flags.configPath
	if configPath != "" && !filepath.IsAbs(configPath) {
		configPath = filepath.Join(workDir, configPath)
	}

	cfg, err := config.LoadOrDefault(ctx, fs, configPath)
	if err != nil {
		return nil, err
	}

	env := &environment{cfg: cfg, fs: fs, workDir: workDir}

	repo, err := gitmeta.Open(ctx, &gitmeta.Options{FS: fs, Workdir: workDir})
	if err != nil {
		slog.Debug("no git repository detected", "workdir", workDir, "error", err)
		return env, nil
	}
	env.repo = repo

	return env, nil
}

// buildContext assembles the build context from the environment
// variables, backfilled from repository discovery.
func (e *environment) buildContext(ctx context.Context) (release.BuildContext, error) {
	bctx, err := release.FromEnv(os.Getenv)
	if err != nil {
		return release.BuildContext{}, err
	}
	if bctx.BaseVersion == "" {
		bctx.BaseVersion = e.cfg.Release.BaseVersion
	}

	rules, err := e.cfg.Rules()
	if err != nil {
		return release.BuildContext{}, err
	}

	// A typed nil repo must not reach the interface, or the nil check
	// on the other side stops working.
	var history pipeline.History
	if e.repo != nil {
		history = e.repo
	}
	return pipeline.EnrichContext(ctx, bctx, history, rules)
}

// runner builds a pipeline runner for the environment.
func (e *environment) runner(opts ...pipeline.Option) (*pipeline.Runner, error) {
	base := []pipeline.Option{
		pipeline.WithFilesystem(e.fs),
		pipeline.WithWorkDir(e.workDir),
		pipeline.WithLogger(slog.Default()),
	}
	if e.repo != nil {
		base = append(base, pipeline.WithRepo(e.repo))
	}
	return pipeline.New(e.cfg, append(base, opts...)...)
}

// versionFilePath resolves the configured version file against the
// workspace.
func (e *environment) versionFilePath() string {
	path := e.cfg.Release.VersionFile
	if path == "" {
		path = release.DefaultVersionFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.workDir, path)
	}
	return path
}
