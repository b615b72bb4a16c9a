// Copyright © 2018 One Concern

// Package repository defines the storage abstraction over a version-controlled
// project: a local working copy, a hosted remote or a plain filesystem snapshot.
//
// All backends expose read access at a revision. Backends able to mutate branches
// implement Brancher, and hosted backends with pull requests and dispatch
// events implement Remote.
package repository

import (
	"context"
	"strings"
)

// Revision identifies a snapshot of a repository.
//
// A revision is either concrete (e.g. a commit id) or symbolic (HEAD, a branch or a tag).
// Symbolic revisions are resolved by a backend before any read.
type Revision string

const (
	// Head designates the current revision of the default branch
	Head Revision = "HEAD"

	// WorkTree is the single revision exposed by filesystem snapshots
	WorkTree Revision = "worktree"
)

// Branch builds a symbolic revision for a branch
func Branch(name string) Revision {
	return Revision("refs/heads/" + name)
}

// Tag builds a symbolic revision for a tag
func Tag(name string) Revision {
	return Revision("refs/tags/" + name)
}

// String representation of a revision
func (r Revision) String() string {
	return string(r)
}

// IsZero tells if no revision is specified
func (r Revision) IsZero() bool {
	return r == ""
}

// BranchName returns the name of a branch revision, if any
func (r Revision) BranchName() (string, bool) {
	return trimmed(string(r), "refs/heads/")
}

// TagName returns the name of a tag revision, if any
func (r Revision) TagName() (string, bool) {
	return trimmed(string(r), "refs/tags/")
}

func trimmed(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return strings.TrimPrefix(s, prefix), true
}

// ApplyPathFunc is a callback called for each path listed by a backend.
//
// Returning an error stops the listing, and the error is returned by the listing call.
type ApplyPathFunc func(path string) error

// Backend knows how to read files from a repository at some revision.
type Backend interface {
	String() string

	// Resolve a revision to a concrete one
	Resolve(context.Context, Revision) (Revision, error)

	// ReadFile returns the content of a file at some revision.
	//
	// It fails with status.ErrNotFound if the file does not exist at this revision,
	// or with status.ErrTransient on backend failures.
	ReadFile(ctx context.Context, path string, rev Revision) ([]byte, error)

	// ListFiles iterates over all files matching a glob pattern at some revision.
	// An empty pattern matches all files.
	ListFiles(ctx context.Context, pattern string, rev Revision, apply ApplyPathFunc) error
}

// Brancher is a backend able to update branches atomically
type Brancher interface {
	Backend

	// BranchHead returns the head revision of a branch, or status.ErrNotFound
	BranchHead(ctx context.Context, branch string) (Revision, error)

	// UpdateBranch commits all edits on top of base and moves the branch head to the new commit.
	//
	// The branch is created when it does not exist. It fails with status.ErrConflict when
	// the branch exists and its head is not base, or when a concurrent update wins the race.
	// No edit is applied when an error is returned.
	UpdateBranch(ctx context.Context, branch string, base Revision, bundle EditBundle) (Revision, error)
}

// Remote is a hosted repository, with pull requests, releases and event dispatch
type Remote interface {
	Brancher

	DefaultBranch(context.Context) (string, error)

	// OpenOrUpdateReleaseRequest opens a pull request for a branch against the default
	// branch. When one is already open for this branch, its title and body are updated.
	OpenOrUpdateReleaseRequest(ctx context.Context, branch, title, body string) (RequestID, error)

	// TriggerDispatch publishes an event for downstream consumers
	TriggerDispatch(context.Context, Event) error

	// CreateRelease publishes a release for a tag
	CreateRelease(context.Context, ReleaseSpec) (ReleaseID, error)
}

// RequestID identifies a release request (e.g. a pull request number)
type RequestID int64

// ReleaseID identifies a published release
type ReleaseID int64

// Edit sets the full content of a file
type Edit struct {
	Path    string
	Content []byte
}

// EditBundle is a set of edits applied as a single commit
type EditBundle struct {
	Message string
	Edits   []Edit
}

// Paths in this bundle
func (b EditBundle) Paths() []string {
	paths := make([]string, 0, len(b.Edits))
	for _, e := range b.Edits {
		paths = append(paths, e.Path)
	}
	return paths
}

// Event is published to downstream consumers of a remote
type Event struct {
	ID      string
	Type    string
	Payload map[string]interface{}
}

// ReleaseSpec describes a release to publish on a remote
type ReleaseSpec struct {
	Tag        string
	Target     Revision
	Name       string
	Body       string
	Prerelease bool
	Latest     bool
}
