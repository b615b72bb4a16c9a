package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEnv = []string{
	"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
	"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	"GIT_CONFIG_NOSYSTEM=1", "HOME=" + os.TempDir(),
}

func runGit(t *testing.T, dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), testEnv...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	require.NoErrorf(t, err, "git %v: %s", args, stderr.String())
	return strings.TrimSpace(string(out))
}

func setupClone(t *testing.T) (string, repository.Revision) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not available")
	}
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")

	files := map[string]string{
		"Cargo.toml":          "[workspace]\nmembers = [\"crates/*\"]\n",
		"crates/a/Cargo.toml": "[package]\nname = \"a\"\nversion = \"0.1.0\"\n",
		"crates/a/src/lib.rs": "",
	}
	for k, v := range files {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, filepath.Dir(k)), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, k), []byte(v), 0600))
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial")

	return dir, repository.Revision(runGit(t, dir, "rev-parse", "HEAD"))
}

func TestWorkingCopyRead(t *testing.T) {
	dir, head := setupClone(t)
	ctx := context.Background()
	w := New(dir)

	got, err := w.Resolve(ctx, repository.Head)
	require.NoError(t, err)
	assert.Equal(t, head, got)

	got, err = w.Resolve(ctx, repository.Branch("main"))
	require.NoError(t, err)
	assert.Equal(t, head, got)

	_, err = w.Resolve(ctx, repository.Branch("nope"))
	assert.True(t, errors.Is(err, status.ErrNotFound))

	content, err := w.ReadFile(ctx, "crates/a/Cargo.toml", head)
	require.NoError(t, err)
	assert.Contains(t, string(content), `version = "0.1.0"`)

	_, err = w.ReadFile(ctx, "crates/b/Cargo.toml", head)
	assert.True(t, errors.Is(err, status.ErrNotFound))

	_, err = w.ReadFile(ctx, "crates", head)
	assert.True(t, errors.Is(err, status.ErrNotFound))

	var paths []string
	require.NoError(t, w.ListFiles(ctx, "**/Cargo.toml", head, func(p string) error {
		paths = append(paths, p)
		return nil
	}))
	assert.Equal(t, []string{"Cargo.toml", "crates/a/Cargo.toml"}, paths)
}

func TestWorkingCopyUpdateBranch(t *testing.T) {
	dir, base := setupClone(t)
	ctx := context.Background()
	w := New(dir, Author("relman", "relman@example.com"))

	bundle := repository.EditBundle{
		Message: "Release `0.2.0`",
		Edits: []repository.Edit{
			{Path: "crates/a/Cargo.toml", Content: []byte("[package]\nname = \"a\"\nversion = \"0.2.0\"\n")},
			{Path: "crates/a/CHANGELOG.md", Content: []byte("# Changelog\n")},
		},
	}
	head, err := w.UpdateBranch(ctx, "release/0.2.0", base, bundle)
	require.NoError(t, err)
	assert.NotEqual(t, base, head)

	assert.Equal(t, string(base), runGit(t, dir, "rev-parse", string(head)+"^"))
	for _, edit := range bundle.Edits {
		content, err := w.ReadFile(ctx, edit.Path, repository.Branch("release/0.2.0"))
		require.NoError(t, err)
		assert.Equal(t, edit.Content, content)
	}
	_, err = w.ReadFile(ctx, "crates/a/src/lib.rs", head)
	require.NoError(t, err)

	// the work tree and the checked out branch are untouched
	current, err := w.Resolve(ctx, repository.Head)
	require.NoError(t, err)
	assert.Equal(t, base, current)
	onDisk, err := os.ReadFile(filepath.Join(dir, "crates/a/Cargo.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "0.1.0")

	_, err = w.UpdateBranch(ctx, "release/0.2.0", base, bundle)
	assert.True(t, errors.Is(err, status.ErrConflict))

	next, err := w.UpdateBranch(ctx, "release/0.2.0", head, bundle)
	require.NoError(t, err)
	assert.Equal(t, string(head), runGit(t, dir, "rev-parse", string(next)+"^"))
}

type failingExecutor struct{}

func (failingExecutor) Execute(context.Context, Command) error {
	return errors.New("no git here")
}

func TestWorkingCopyTransient(t *testing.T) {
	w := New("/nowhere", WithExecutor(failingExecutor{}))
	_, err := w.ReadFile(context.Background(), "a", repository.Head)
	assert.True(t, errors.Is(err, status.ErrTransient))
	assert.Equal(t, "git@/nowhere", w.String())
}
