package gitmeta

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagsAt(t *testing.T) {
	tr := setupTestRepo(t)
	first := tr.commitFile(t, "a.txt", "a", "first commit")
	second := tr.commitFile(t, "a.txt", "b", "second commit")

	tr.tagLightweight(t, "v1.0.0", first)
	tr.tagAnnotated(t, "v1.1.0", second, "release v1.1.0")
	tr.tagLightweight(t, "deploy-marker", second)

	tags, err := tr.repo.TagsAt(tr.ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy-marker", "v1.1.0"}, tags)

	tags, err = tr.repo.TagsAt(tr.ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.0.0"}, tags)
}

func TestTagsAt_NoTags(t *testing.T) {
	tr := setupTestRepo(t)
	hash := tr.commitFile(t, "a.txt", "a", "first commit")

	tags, err := tr.repo.TagsAt(tr.ctx, hash)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestLatestReleaseTag_SemverOrdering(t *testing.T) {
	tr := setupTestRepo(t)
	first := tr.commitFile(t, "a.txt", "a", "first commit")
	second := tr.commitFile(t, "a.txt", "b", "second commit")
	third := tr.commitFile(t, "a.txt", "c", "third commit")

	// v1.10.0 sorts after v1.9.0 numerically but before it lexically.
	tr.tagLightweight(t, "v1.9.0", first)
	tr.tagAnnotated(t, "v1.10.0", second, "release v1.10.0")
	tr.tagLightweight(t, "v1.2.0", third)

	latest, err := tr.repo.LatestReleaseTag(tr.ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1.10.0", latest.Name)
	assert.Equal(t, second, latest.Hash, "annotated tag should resolve to its target commit")
	assert.Equal(t, "1.10.0", latest.Version.String())
}

func TestLatestReleaseTag_FilterApplies(t *testing.T) {
	tr := setupTestRepo(t)
	hash := tr.commitFile(t, "a.txt", "a", "first commit")

	tr.tagLightweight(t, "v1.0.0", hash)
	tr.tagLightweight(t, "v2.0.0-rc1", hash)

	releasePattern := regexp.MustCompile(`^v[0-9]+(\.[0-9]+)*$`)
	latest, err := tr.repo.LatestReleaseTag(tr.ctx, func(name string) bool {
		return releasePattern.MatchString(name)
	})
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", latest.Name, "pre-release tag should be filtered out")
}

func TestLatestReleaseTag_SkipsUnparsableNames(t *testing.T) {
	tr := setupTestRepo(t)
	hash := tr.commitFile(t, "a.txt", "a", "first commit")

	tr.tagLightweight(t, "deploy-marker", hash)
	tr.tagLightweight(t, "v1.5", hash)

	latest, err := tr.repo.LatestReleaseTag(tr.ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1.5", latest.Name)
}

func TestLatestReleaseTag_NoneFound(t *testing.T) {
	tr := setupTestRepo(t)
	tr.commitFile(t, "a.txt", "a", "first commit")

	_, err := tr.repo.LatestReleaseTag(tr.ctx, nil)
	require.ErrorIs(t, err, ErrNoReleaseTag)
}
