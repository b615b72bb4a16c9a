// Package memory implements an in-memory repository, with branches, release
// requests, releases and dispatched events.
//
// It is safe for concurrent use and exposes the full Remote capability. It is
// primarily used in tests and for dry runs.
package memory

import (
	"context"
	"crypto/sha1" // #nosec
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
)

var _ repository.Remote = &Repository{}

// Request is a release request held in memory
type Request struct {
	ID     repository.RequestID
	Branch string
	Base   string
	Title  string
	Body   string
	Open   bool
}

type commit struct {
	id      repository.Revision
	parent  repository.Revision
	message string
	files   map[string][]byte
}

// Repository is an in-memory repository
type Repository struct {
	mu            sync.Mutex
	name          string
	defaultBranch string
	seq           int
	commits       map[repository.Revision]*commit
	branches      map[string]repository.Revision
	tags          map[string]repository.Revision
	requests      map[string]*Request
	nextRequest   repository.RequestID
	events        []repository.Event
	releases      []repository.ReleaseSpec
	hooks         map[string][]func()
	failures      map[string][]error
}

// New in-memory repository, with an initial commit on the default branch holding some files
func New(files map[string]string, opts ...Option) *Repository {
	r := &Repository{
		name:          "memory",
		defaultBranch: "main",
		commits:       make(map[repository.Revision]*commit),
		branches:      make(map[string]repository.Revision),
		tags:          make(map[string]repository.Revision),
		requests:      make(map[string]*Request),
		hooks:         make(map[string][]func()),
		failures:      make(map[string][]error),
	}
	for _, apply := range opts {
		apply(r)
	}

	content := make(map[string][]byte, len(files))
	for k, v := range files {
		content[k] = []byte(v)
	}
	root := r.newCommit("", "initial commit", content)
	r.branches[r.defaultBranch] = root.id

	return r
}

func (r *Repository) String() string {
	return r.name
}

// newCommit registers a commit. Must be called with the lock held.
func (r *Repository) newCommit(parent repository.Revision, message string, files map[string][]byte) *commit {
	r.seq++
	h := sha1.New() // #nosec
	_, _ = h.Write([]byte(strconv.Itoa(r.seq) + "\x00" + string(parent) + "\x00" + message))
	paths := sortedPaths(files)
	for _, p := range paths {
		_, _ = h.Write([]byte("\x00" + p + "\x00"))
		_, _ = h.Write(files[p])
	}
	c := &commit{
		id:      repository.Revision(hex.EncodeToString(h.Sum(nil))),
		parent:  parent,
		message: message,
		files:   files,
	}
	r.commits[c.id] = c
	return c
}

func sortedPaths(files map[string][]byte) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// before runs the hooks registered for an operation and pops the next injected failure, if any.
// Must be called without the lock held.
func (r *Repository) before(op string) error {
	r.mu.Lock()
	hooks := r.hooks[op]
	delete(r.hooks, op)
	var err error
	if failures := r.failures[op]; len(failures) > 0 {
		err = failures[0]
		r.failures[op] = failures[1:]
	}
	r.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	return err
}

// resolve a revision. Must be called with the lock held.
func (r *Repository) resolve(rev repository.Revision) (*commit, error) {
	var id repository.Revision
	switch {
	case rev.IsZero() || rev == repository.Head:
		id = r.branches[r.defaultBranch]
	default:
		if name, ok := rev.BranchName(); ok {
			id = r.branches[name]
		} else if name, ok := rev.TagName(); ok {
			id = r.tags[name]
		} else if head, ok := r.branches[string(rev)]; ok {
			id = head
		} else {
			id = rev
		}
	}
	c, ok := r.commits[id]
	if !ok {
		return nil, status.ErrNotFound.Wrapf("revision %q", rev)
	}
	return c, nil
}

// Resolve a revision to a commit id
func (r *Repository) Resolve(_ context.Context, rev repository.Revision) (repository.Revision, error) {
	if err := r.before("Resolve"); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.resolve(rev)
	if err != nil {
		return "", err
	}
	return c.id, nil
}

// ReadFile at some revision
func (r *Repository) ReadFile(_ context.Context, path string, rev repository.Revision) ([]byte, error) {
	if err := r.before("ReadFile"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.resolve(rev)
	if err != nil {
		return nil, err
	}
	content, ok := c.files[strings.TrimPrefix(path, "/")]
	if !ok {
		return nil, status.ErrNotFound.Wrapf("file %q at %s", path, rev)
	}
	return append([]byte(nil), content...), nil
}

// ListFiles matching a pattern at some revision, in lexicographic order
func (r *Repository) ListFiles(_ context.Context, pattern string, rev repository.Revision, apply repository.ApplyPathFunc) error {
	if err := r.before("ListFiles"); err != nil {
		return err
	}
	r.mu.Lock()
	c, err := r.resolve(rev)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	// commits are immutable: iterate without holding the lock
	for _, p := range sortedPaths(c.files) {
		if !repository.Match(pattern, p) {
			continue
		}
		if err := apply(p); err != nil {
			return err
		}
	}
	return nil
}

// BranchHead returns the head of a branch
func (r *Repository) BranchHead(_ context.Context, branch string) (repository.Revision, error) {
	if err := r.before("BranchHead"); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	head, ok := r.branches[branch]
	if !ok {
		return "", status.ErrNotFound.Wrapf("branch %q", branch)
	}
	return head, nil
}

// UpdateBranch commits a bundle of edits on top of base, then moves the branch head
func (r *Repository) UpdateBranch(_ context.Context, branch string, base repository.Revision, bundle repository.EditBundle) (repository.Revision, error) {
	if err := r.before("UpdateBranch"); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.commits[base]
	if !ok {
		return "", status.ErrNotFound.Wrapf("base revision %q", base)
	}
	if head, exists := r.branches[branch]; exists && head != base {
		return "", status.ErrConflict.Wrapf("branch %q is at %s, not %s", branch, head, base)
	}

	files := make(map[string][]byte, len(parent.files)+len(bundle.Edits))
	for k, v := range parent.files {
		files[k] = v
	}
	for _, edit := range bundle.Edits {
		files[strings.TrimPrefix(edit.Path, "/")] = append([]byte(nil), edit.Content...)
	}
	c := r.newCommit(base, bundle.Message, files)
	r.branches[branch] = c.id

	return c.id, nil
}

// DefaultBranch of this repository
func (r *Repository) DefaultBranch(_ context.Context) (string, error) {
	if err := r.before("DefaultBranch"); err != nil {
		return "", err
	}
	return r.defaultBranch, nil
}

// OpenOrUpdateReleaseRequest opens a request for a branch, or updates the open one
func (r *Repository) OpenOrUpdateReleaseRequest(_ context.Context, branch, title, body string) (repository.RequestID, error) {
	if err := r.before("OpenOrUpdateReleaseRequest"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.branches[branch]; !ok {
		return 0, status.ErrNotFound.Wrapf("branch %q", branch)
	}
	if req, ok := r.requests[branch]; ok && req.Open {
		req.Title = title
		req.Body = body
		return req.ID, nil
	}

	r.nextRequest++
	r.requests[branch] = &Request{
		ID:     r.nextRequest,
		Branch: branch,
		Base:   r.defaultBranch,
		Title:  title,
		Body:   body,
		Open:   true,
	}
	return r.nextRequest, nil
}

// TriggerDispatch records an event
func (r *Repository) TriggerDispatch(_ context.Context, event repository.Event) error {
	if err := r.before("TriggerDispatch"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	return nil
}

// CreateRelease records a release and tags its target revision
func (r *Repository) CreateRelease(_ context.Context, spec repository.ReleaseSpec) (repository.ReleaseID, error) {
	if err := r.before("CreateRelease"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tags[spec.Tag]; exists {
		return 0, status.ErrConflict.Wrapf("tag %q already exists", spec.Tag)
	}
	c, err := r.resolve(spec.Target)
	if err != nil {
		return 0, err
	}
	r.tags[spec.Tag] = c.id
	r.releases = append(r.releases, spec)

	return repository.ReleaseID(len(r.releases)), nil
}
