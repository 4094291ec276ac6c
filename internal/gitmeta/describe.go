// Package gitmeta reads release metadata from a git repository.
// This file contains the HEAD inspection operations feeding the build context.
package gitmeta

import (
	"context"
	"errors"
	"sort"
)

// BuildInfo is the repository-derived part of a build context.
type BuildInfo struct {
	// CommitSHA is the full hex hash of the HEAD commit.
	CommitSHA string

	// Branch is the checked out branch name, empty when HEAD is detached.
	Branch string

	// Tag is a tag pointing at HEAD, empty when there is none. When several
	// tags point at HEAD the lexicographically first one is reported.
	Tag string
}

// HeadSHA returns the full hash of the HEAD commit.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) HeadSHA(ctx context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", WrapError(err, "failed to get HEAD reference")
	}
	return head.Hash().String(), nil
}

// CurrentBranch returns the name of the currently checked out branch.
// It returns ErrDetachedHead if HEAD does not point at a branch.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", WrapError(err, "failed to get HEAD reference")
	}

	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}

	return head.Name().Short(), nil
}

// Describe collects the HEAD commit hash, the current branch, and a tag
// pointing at HEAD into a single BuildInfo. A detached HEAD yields an empty
// branch rather than an error, matching what CI exposes on tag builds.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) Describe(ctx context.Context) (*BuildInfo, error) {
	sha, err := r.HeadSHA(ctx)
	if err != nil {
		return nil, err
	}

	branch, err := r.CurrentBranch(ctx)
	if err != nil && !errors.Is(err, ErrDetachedHead) {
		return nil, err
	}

	tags, err := r.TagsAt(ctx, sha)
	if err != nil {
		return nil, err
	}

	info := &BuildInfo{
		CommitSHA: sha,
		Branch:    branch,
	}
	if len(tags) > 0 {
		sort.Strings(tags)
		info.Tag = tags[0]
	}

	return info, nil
}
