// Copyright © 2018 One Concern

// Package status declares error constants returned by
// repository backends and by the release core.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/repository and one
// of its implementations.
package status

import "github.com/oneconcern/relman/pkg/errors"

var (
	// Sentinel errors returned by repository backends

	// ErrNotFound indicates that a path, revision or branch does not exist
	ErrNotFound = errors.New("not found")

	// ErrTransient indicates a backend or network failure: the call may be retried
	ErrTransient = errors.New("transient backend failure")

	// ErrConflict indicates that a branch update was based on a stale revision
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized indicates that you don't provided correct credentials to the API
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates that the backend API forbids access to the target resource
	ErrForbidden = errors.New("forbidden")

	// ErrNotSupported indicates that the backend does not support this call
	ErrNotSupported = errors.New("not supported")

	// Sentinel errors returned by the release core

	// ErrParse indicates a malformed manifest, lockfile or project configuration
	ErrParse = errors.New("parse error")

	// ErrNothingToRelease indicates that a package has no unreleased changes
	ErrNothingToRelease = errors.New("nothing to release")

	// ErrInvalidBump indicates that the requested version would not move forward
	ErrInvalidBump = errors.New("invalid version bump")
)
