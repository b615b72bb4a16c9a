// Copyright © 2018 One Concern

// Package git implements a repository over a local git working copy.
//
// Reads go through the object database, so that any revision is accessible
// regardless of the checked out files. Branch updates are built with git plumbing
// commands in a temporary index: the work tree and the checked out branch are
// never touched.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
	"go.uber.org/zap"
)

const zeroID = "0000000000000000000000000000000000000000"

var _ repository.Brancher = &WorkingCopy{}

// WorkingCopy is a repository backed by a local git clone
type WorkingCopy struct {
	dir         string
	exec        Executor
	l           *zap.Logger
	authorName  string
	authorEmail string
}

// New working copy backend for a git clone at some directory
func New(dir string, opts ...Option) *WorkingCopy {
	w := &WorkingCopy{
		dir:  dir,
		exec: OSExecutor{},
		l:    zap.NewNop(),
	}
	for _, apply := range opts {
		apply(w)
	}
	return w
}

func (w *WorkingCopy) String() string {
	return "git@" + w.dir
}

type gitError struct {
	args   []string
	stderr string
	err    error
}

func (e *gitError) Error() string {
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.args, " "), e.err, strings.TrimSpace(e.stderr))
}

func (e *gitError) Unwrap() error {
	return e.err
}

func (w *WorkingCopy) run(ctx context.Context, env []string, stdin []byte, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := Command{
		Args:   args,
		Dir:    w.dir,
		Stdout: &stdout,
		Stderr: &stderr,
	}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	w.l.Debug("git", zap.Strings("args", args))

	if err := w.exec.Execute(ctx, cmd); err != nil {
		return nil, &gitError{args: args, stderr: stderr.String(), err: err}
	}
	return stdout.Bytes(), nil
}

// classify a failed lookup: not found when git ran and reported a failure,
// transient when it could not run at all
func classify(err error) error {
	if ge, ok := err.(*gitError); ok && isExitError(ge.err) {
		return status.ErrNotFound.Wrap(err)
	}
	return status.ErrTransient.Wrap(err)
}

// Resolve a revision to a commit id
func (w *WorkingCopy) Resolve(ctx context.Context, rev repository.Revision) (repository.Revision, error) {
	if rev.IsZero() {
		rev = repository.Head
	}
	out, err := w.run(ctx, nil, nil, "rev-parse", "--verify", "--quiet", string(rev)+"^{commit}")
	if err != nil {
		return "", classify(err)
	}
	return repository.Revision(strings.TrimSpace(string(out))), nil
}

// ReadFile from the object database
func (w *WorkingCopy) ReadFile(ctx context.Context, path string, rev repository.Revision) ([]byte, error) {
	commit, err := w.Resolve(ctx, rev)
	if err != nil {
		return nil, err
	}
	out, err := w.run(ctx, nil, nil, "ls-tree", "-z", string(commit), "--", strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, status.ErrTransient.Wrap(err)
	}

	// <mode> SP <type> SP <object> TAB <file>
	entry := strings.TrimRight(string(out), "\x00")
	fields := strings.Fields(strings.SplitN(entry, "\t", 2)[0])
	if len(fields) != 3 || fields[1] != "blob" {
		return nil, status.ErrNotFound.Wrapf("file %q at %s", path, rev)
	}

	content, err := w.run(ctx, nil, nil, "cat-file", "blob", fields[2])
	if err != nil {
		return nil, status.ErrTransient.Wrap(err)
	}
	return content, nil
}

// ListFiles in the tree of some revision
func (w *WorkingCopy) ListFiles(ctx context.Context, pattern string, rev repository.Revision, apply repository.ApplyPathFunc) error {
	commit, err := w.Resolve(ctx, rev)
	if err != nil {
		return err
	}
	out, err := w.run(ctx, nil, nil, "ls-tree", "-r", "-z", "--name-only", string(commit))
	if err != nil {
		return status.ErrTransient.Wrap(err)
	}
	for _, p := range strings.Split(string(out), "\x00") {
		if p == "" || !repository.Match(pattern, p) {
			continue
		}
		if err := apply(p); err != nil {
			return err
		}
	}
	return nil
}

// BranchHead returns the commit a local branch points to
func (w *WorkingCopy) BranchHead(ctx context.Context, branch string) (repository.Revision, error) {
	return w.Resolve(ctx, repository.Branch(branch))
}

// UpdateBranch commits edits on top of base in a temporary index, then moves the
// branch with a compare-and-swap on its previous value
func (w *WorkingCopy) UpdateBranch(ctx context.Context, branch string, base repository.Revision, bundle repository.EditBundle) (repository.Revision, error) {
	parent, err := w.Resolve(ctx, base)
	if err != nil {
		return "", err
	}
	old := zeroID
	head, err := w.BranchHead(ctx, branch)
	switch {
	case err == nil && head != parent:
		return "", status.ErrConflict.Wrapf("branch %q is at %s, not %s", branch, head, parent)
	case err == nil:
		old = string(head)
	case !errors.Is(err, status.ErrNotFound):
		return "", err
	}

	tmp, err := os.MkdirTemp("", "relman-index-")
	if err != nil {
		return "", status.ErrTransient.Wrap(err)
	}
	defer func() {
		_ = os.RemoveAll(tmp)
	}()
	env := []string{"GIT_INDEX_FILE=" + filepath.Join(tmp, "index")}
	env = append(env, w.identity()...)

	if _, err = w.run(ctx, env, nil, "read-tree", string(parent)); err != nil {
		return "", status.ErrTransient.Wrap(err)
	}
	for _, edit := range bundle.Edits {
		blob, err := w.run(ctx, env, edit.Content, "hash-object", "-w", "--stdin")
		if err != nil {
			return "", status.ErrTransient.Wrap(err)
		}
		info := fmt.Sprintf("100644,%s,%s", strings.TrimSpace(string(blob)), strings.TrimPrefix(edit.Path, "/"))
		if _, err = w.run(ctx, env, nil, "update-index", "--add", "--cacheinfo", info); err != nil {
			return "", status.ErrTransient.Wrap(err)
		}
	}
	tree, err := w.run(ctx, env, nil, "write-tree")
	if err != nil {
		return "", status.ErrTransient.Wrap(err)
	}

	message := bundle.Message
	if message == "" {
		message = "update " + branch
	}
	out, err := w.run(ctx, env, []byte(message), "commit-tree", strings.TrimSpace(string(tree)), "-p", string(parent))
	if err != nil {
		return "", status.ErrTransient.Wrap(err)
	}
	commit := strings.TrimSpace(string(out))

	if _, err = w.run(ctx, env, nil, "update-ref", "-m", firstLine(message), "refs/heads/"+branch, commit, old); err != nil {
		if ge, ok := err.(*gitError); ok && isExitError(ge.err) {
			return "", status.ErrConflict.Wrap(err)
		}
		return "", status.ErrTransient.Wrap(err)
	}
	w.l.Info("branch updated", zap.String("branch", branch), zap.String("head", commit))

	return repository.Revision(commit), nil
}

func (w *WorkingCopy) identity() []string {
	var env []string
	if w.authorName != "" {
		env = append(env, "GIT_AUTHOR_NAME="+w.authorName, "GIT_COMMITTER_NAME="+w.authorName)
	}
	if w.authorEmail != "" {
		env = append(env, "GIT_AUTHOR_EMAIL="+w.authorEmail, "GIT_COMMITTER_EMAIL="+w.authorEmail)
	}
	return env
}

func firstLine(s string) string {
	return strings.SplitN(s, "\n", 2)[0]
}
