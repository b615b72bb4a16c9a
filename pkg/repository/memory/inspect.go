package memory

import (
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
)

// Push commits files on a branch directly, as a concurrent writer would
func (r *Repository) Push(branch, message string, files map[string]string) (repository.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.branches[branch]
	if !ok {
		parent = r.branches[r.defaultBranch]
	}
	content := make(map[string][]byte)
	for k, v := range r.commits[parent].files {
		content[k] = v
	}
	for k, v := range files {
		content[k] = []byte(v)
	}
	c := r.newCommit(parent, message, content)
	r.branches[branch] = c.id

	return c.id, nil
}

// Merge closes the release request for a branch and fast-forwards the default branch to its head
func (r *Repository) Merge(branch string) (repository.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, ok := r.branches[branch]
	if !ok {
		return "", status.ErrNotFound.Wrapf("branch %q", branch)
	}
	if req, ok := r.requests[branch]; ok {
		req.Open = false
	}
	r.branches[r.defaultBranch] = head

	return head, nil
}

// OnNext registers a hook, run once before the next call to some operation (e.g. "UpdateBranch")
func (r *Repository) OnNext(op string, hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks[op] = append(r.hooks[op], hook)
}

// FailNext makes the next call to some operation fail with an error
func (r *Repository) FailNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures[op] = append(r.failures[op], err)
}

// Request returns the release request opened for a branch
func (r *Repository) Request(branch string) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[branch]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// Events dispatched so far
func (r *Repository) Events() []repository.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]repository.Event(nil), r.events...)
}

// Releases created so far
func (r *Repository) Releases() []repository.ReleaseSpec {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]repository.ReleaseSpec(nil), r.releases...)
}

// Parent of a commit
func (r *Repository) Parent(rev repository.Revision) (repository.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.resolve(rev)
	if err != nil {
		return "", err
	}
	return c.parent, nil
}
