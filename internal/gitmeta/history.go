// Package gitmeta reads release metadata from a git repository.
// This file contains commit history operations used for release notes.
package gitmeta

import (
	"context"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Commit is a flattened commit summary, detached from repository storage so
// consumers can be tested without building repositories.
type Commit struct {
	// Hash is the full hex hash of the commit.
	Hash string

	// Message is the full commit message including the body.
	Message string

	// Author is the author name.
	Author string

	// Email is the author email.
	Email string

	// When is the author timestamp.
	When time.Time
}

// CommitsSince returns commits reachable from HEAD, newest first, stopping
// before the commit with the given hash. An empty since hash walks the whole
// history. maxCount caps the result size; 0 means no cap.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) CommitsSince(ctx context.Context, since string, maxCount int) ([]Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, WrapError(err, "failed to get HEAD reference")
	}

	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, WrapError(err, "failed to create commit iterator")
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if since != "" && c.Hash.String() == since {
			return storer.ErrStop
		}
		if maxCount > 0 && len(commits) >= maxCount {
			return storer.ErrStop
		}

		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to iterate commits")
	}

	return commits, nil
}
