// Package gitmeta reads release metadata from a git repository.
//
// The release pipeline normally learns its build context from CI environment
// variables; this package fills the gaps when it runs outside CI or when
// individual variables are missing. It operates exclusively through the
// project's filesystem abstraction so tests can run against in-memory
// repositories.
package gitmeta

import (
	"context"

	gobilly "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/opendatateam/hydra-release/internal/fsys"
)

const (
	// DefaultStorerCacheSize is the default size for the LRU object cache.
	DefaultStorerCacheSize = 1000

	// DefaultWorkdir is the default worktree directory name.
	DefaultWorkdir = "."
)

// Options configures repository discovery.
type Options struct {
	// FS is the REQUIRED filesystem root holding the repository.
	FS fsys.Filesystem

	// Workdir is the path within FS for the worktree root.
	// Defaults to "." (current directory in FS).
	Workdir string

	// StorerCacheSize sets the LRU objects cache entries.
	// Defaults to DefaultStorerCacheSize.
	StorerCacheSize int
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	if o.FS == nil {
		return WrapError(ErrInvalidOptions, "FS is required")
	}

	if o.StorerCacheSize < 0 {
		return WrapError(ErrInvalidOptions, "StorerCacheSize cannot be negative")
	}

	return nil
}

// applyDefaults sets default values for any unset fields in Options.
func (o *Options) applyDefaults() {
	if o.Workdir == "" {
		o.Workdir = DefaultWorkdir
	}

	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}
}

// Repo is a read-mostly handle on a git repository, scoped to the
// metadata the release pipeline needs.
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	options  Options
}

// Open opens an existing non-bare repository at the workdir within the
// filesystem. The .git directory and worktree must both be present.
func Open(ctx context.Context, opts *Options) (*Repo, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	opts.applyDefaults()

	worktreeFS, storage, err := repoStorage(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(storage, worktreeFS)
	if err != nil {
		return nil, WrapError(err, "failed to open repository")
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree")
	}

	return &Repo{
		repo:     repo,
		worktree: worktree,
		options:  *opts,
	}, nil
}

// Init creates a new non-bare repository at the workdir within the
// filesystem.
func Init(ctx context.Context, opts *Options) (*Repo, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	opts.applyDefaults()

	worktreeFS, storage, err := repoStorage(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Init(storage, worktreeFS)
	if err != nil {
		return nil, WrapError(err, "failed to initialize repository")
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree")
	}

	return &Repo{
		repo:     repo,
		worktree: worktree,
		options:  *opts,
	}, nil
}

// repoStorage builds the scoped worktree filesystem and the .git-backed
// object storage for the configured workdir.
func repoStorage(opts *Options) (gobilly.Filesystem, *filesystem.Storage, error) {
	billyFS, err := toBilly(opts.FS)
	if err != nil {
		return nil, nil, err
	}

	scopedFS, err := billyFS.Chroot(opts.Workdir)
	if err != nil {
		return nil, nil, WrapErrorf(err, "failed to chroot to workdir %q", opts.Workdir)
	}

	dotGitFS, err := scopedFS.Chroot(git.GitDirName)
	if err != nil {
		return nil, nil, WrapError(err, "failed to access .git directory")
	}

	objCache := cache.NewObjectLRU(cache.FileSize(opts.StorerCacheSize))
	return scopedFS, filesystem.NewStorage(dotGitFS, objCache), nil
}

// toBilly unwraps the billy backend from the filesystem abstraction.
func toBilly(filesystem fsys.Filesystem) (gobilly.Filesystem, error) {
	type rawer interface {
		Raw() gobilly.Filesystem
	}

	r, ok := filesystem.(rawer)
	if !ok {
		return nil, WrapError(ErrInvalidOptions, "filesystem does not expose a billy backend")
	}
	return r.Raw(), nil
}
