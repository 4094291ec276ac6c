package gitmeta

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/opendatateam/hydra-release/internal/fsys"
)

// testRepo is a helper struct that contains a test repository and its filesystem.
type testRepo struct {
	repo *Repo
	fs   fsys.Filesystem
	ctx  context.Context
}

// setupTestRepo creates a new test repository with an in-memory filesystem.
func setupTestRepo(t *testing.T) *testRepo {
	t.Helper()

	ctx := context.Background()
	memFS := fsys.NewInMemoryFS()

	opts := Options{
		FS:      memFS,
		Workdir: ".",
	}

	repo, err := Init(ctx, &opts)
	require.NoError(t, err, "failed to initialize test repository")
	require.NotNil(t, repo, "repository should not be nil")

	return &testRepo{
		repo: repo,
		fs:   memFS,
		ctx:  ctx,
	}
}

// commitFile writes a file and commits it, returning the commit hash.
func (tr *testRepo) commitFile(t *testing.T, name, content, message string) string {
	t.Helper()

	err := tr.fs.WriteFile(name, []byte(content), 0o644)
	require.NoError(t, err, "failed to write file")

	_, err = tr.repo.worktree.Add(name)
	require.NoError(t, err, "failed to add file")

	hash, err := tr.repo.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "tester",
			Email: "tester@example.org",
			When:  time.Now(),
		},
	})
	require.NoError(t, err, "failed to commit")

	return hash.String()
}

// tagLightweight creates a lightweight tag pointing at the given commit.
func (tr *testRepo) tagLightweight(t *testing.T, name, hash string) {
	t.Helper()

	ref := plumbing.NewHashReference(plumbing.NewTagReferenceName(name), plumbing.NewHash(hash))
	err := tr.repo.repo.Storer.SetReference(ref)
	require.NoError(t, err, "failed to create lightweight tag")
}

// tagAnnotated creates an annotated tag pointing at the given commit.
func (tr *testRepo) tagAnnotated(t *testing.T, name, hash, message string) {
	t.Helper()

	_, err := tr.repo.repo.CreateTag(name, plumbing.NewHash(hash), &git.CreateTagOptions{
		Tagger: &object.Signature{
			Name:  "tester",
			Email: "tester@example.org",
			When:  time.Now(),
		},
		Message: message,
	})
	require.NoError(t, err, "failed to create annotated tag")
}

// switchBranch points HEAD at a new branch created from the current commit.
// The worktree contents are left untouched.
func (tr *testRepo) switchBranch(t *testing.T, name string) {
	t.Helper()

	head, err := tr.repo.repo.Head()
	require.NoError(t, err, "failed to get HEAD")

	branchRef := plumbing.NewBranchReferenceName(name)
	err = tr.repo.repo.Storer.SetReference(plumbing.NewHashReference(branchRef, head.Hash()))
	require.NoError(t, err, "failed to create branch reference")

	err = tr.repo.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branchRef))
	require.NoError(t, err, "failed to move HEAD")
}

// detachHead points HEAD directly at the given commit hash.
func (tr *testRepo) detachHead(t *testing.T, hash string) {
	t.Helper()

	err := tr.repo.repo.Storer.SetReference(
		plumbing.NewHashReference(plumbing.HEAD, plumbing.NewHash(hash)),
	)
	require.NoError(t, err, "failed to detach HEAD")
}
