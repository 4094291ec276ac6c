// Package gitmeta reads release metadata from a git repository.
// This file contains tag inspection operations.
package gitmeta

import (
	"context"
	"errors"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5/plumbing"
)

// TagFilter is a predicate function for filtering tags by name.
// It returns true if the tag should be included in the results.
type TagFilter func(name string) bool

// ReleaseTag is a tag accepted by a release tag filter, together with the
// commit it points at and its parsed version for ordering.
type ReleaseTag struct {
	// Name is the short tag name, e.g. "v2.0.0".
	Name string

	// Hash is the full hash of the commit the tag points at.
	Hash string

	// Version is the parsed semantic version used for ordering.
	Version *semver.Version
}

// TagsAt returns the short names of all tags pointing at the given commit
// hash. Both lightweight and annotated tags are resolved. Results are sorted
// alphabetically.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) TagsAt(ctx context.Context, hash string) ([]string, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, WrapError(err, "failed to get references")
	}

	var tags []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if !ref.Name().IsTag() {
			return nil
		}

		target, err := r.tagCommitHash(ref)
		if err != nil {
			return err
		}
		if target == hash {
			tags = append(tags, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to iterate references")
	}

	sort.Strings(tags)
	return tags, nil
}

// LatestReleaseTag returns the highest-versioned tag accepted by the filter.
// Tag names are ordered by their parsed semantic version; names that do not
// parse are skipped. Returns ErrNoReleaseTag when nothing qualifies.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) LatestReleaseTag(ctx context.Context, filter TagFilter) (*ReleaseTag, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, WrapError(err, "failed to get references")
	}

	var latest *ReleaseTag
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if !ref.Name().IsTag() {
			return nil
		}

		name := ref.Name().Short()
		if filter != nil && !filter(name) {
			return nil
		}

		version, parseErr := semver.NewVersion(name)
		if parseErr != nil {
			return nil
		}

		target, hashErr := r.tagCommitHash(ref)
		if hashErr != nil {
			return hashErr
		}

		if latest == nil || version.GreaterThan(latest.Version) {
			latest = &ReleaseTag{
				Name:    name,
				Hash:    target,
				Version: version,
			}
		}
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to iterate references")
	}

	if latest == nil {
		return nil, ErrNoReleaseTag
	}
	return latest, nil
}

// tagCommitHash resolves a tag reference to the hash of the commit it points
// at, following annotated tag objects to their target.
func (r *Repo) tagCommitHash(ref *plumbing.Reference) (string, error) {
	tagObj, err := r.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		// Annotated tag: the reference points at a tag object.
		return tagObj.Target.String(), nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		// Lightweight tag: the reference points at the commit directly.
		return ref.Hash().String(), nil
	default:
		return "", WrapErrorf(err, "failed to resolve tag %q", ref.Name().Short())
	}
}
