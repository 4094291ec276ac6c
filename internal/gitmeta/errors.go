// Package gitmeta reads release metadata from a git repository.
// This file contains sentinel errors for common failure modes.
// All errors can be checked using errors.Is() for programmatic handling.
package gitmeta

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is returned when repository options are missing required
// fields or carry invalid values.
var ErrInvalidOptions = errors.New("invalid options")

// ErrDetachedHead is returned when HEAD does not point at a branch,
// for example on tag builds.
var ErrDetachedHead = errors.New("HEAD is detached")

// ErrResolveFailed is returned when a revision cannot be resolved
// to a commit hash.
var ErrResolveFailed = errors.New("cannot resolve revision")

// ErrNoReleaseTag is returned when the repository contains no tag accepted
// by the release tag filter.
var ErrNoReleaseTag = errors.New("no release tag found")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
