package gitmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitsSince_WholeHistory(t *testing.T) {
	tr := setupTestRepo(t)
	first := tr.commitFile(t, "a.txt", "a", "feat: add resolver")
	second := tr.commitFile(t, "a.txt", "b", "fix: truncate short hashes")

	commits, err := tr.repo.CommitsSince(tr.ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	assert.Equal(t, second, commits[0].Hash, "expected newest first")
	assert.Equal(t, "fix: truncate short hashes", commits[0].Message)
	assert.Equal(t, first, commits[1].Hash)
	assert.Equal(t, "tester", commits[0].Author)
	assert.Equal(t, "tester@example.org", commits[0].Email)
	assert.False(t, commits[0].When.IsZero())
}

func TestCommitsSince_StopsBeforeBoundary(t *testing.T) {
	tr := setupTestRepo(t)
	first := tr.commitFile(t, "a.txt", "a", "first commit")
	second := tr.commitFile(t, "a.txt", "b", "second commit")
	third := tr.commitFile(t, "a.txt", "c", "third commit")

	commits, err := tr.repo.CommitsSince(tr.ctx, first, 0)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, third, commits[0].Hash)
	assert.Equal(t, second, commits[1].Hash)
}

func TestCommitsSince_MaxCount(t *testing.T) {
	tr := setupTestRepo(t)
	tr.commitFile(t, "a.txt", "a", "first commit")
	tr.commitFile(t, "a.txt", "b", "second commit")
	third := tr.commitFile(t, "a.txt", "c", "third commit")

	commits, err := tr.repo.CommitsSince(tr.ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, third, commits[0].Hash)
}
