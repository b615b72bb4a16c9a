package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepo() *Repository {
	return New(map[string]string{
		"Cargo.toml":          "[package]\nname = \"a\"\n",
		"crates/b/lib.rs":     "",
		"crates/b/Cargo.toml": "[package]\nname = \"b\"\n",
	}, Name("test"))
}

func TestReadFile(t *testing.T) {
	ctx := context.Background()
	r := testRepo()
	assert.Equal(t, "test", r.String())

	head, err := r.Resolve(ctx, repository.Head)
	require.NoError(t, err)

	content, err := r.ReadFile(ctx, "Cargo.toml", head)
	require.NoError(t, err)
	assert.Contains(t, string(content), `name = "a"`)

	_, err = r.ReadFile(ctx, "missing.toml", head)
	assert.True(t, errors.Is(err, status.ErrNotFound))

	_, err = r.ReadFile(ctx, "Cargo.toml", "deadbeef")
	assert.True(t, errors.Is(err, status.ErrNotFound))

	r.FailNext("ReadFile", status.ErrTransient)
	_, err = r.ReadFile(ctx, "Cargo.toml", head)
	assert.True(t, errors.Is(err, status.ErrTransient))
}

func TestListFiles(t *testing.T) {
	ctx := context.Background()
	r := testRepo()

	var paths []string
	require.NoError(t, r.ListFiles(ctx, "**/Cargo.toml", repository.Head, func(p string) error {
		paths = append(paths, p)
		return nil
	}))
	assert.Equal(t, []string{"Cargo.toml", "crates/b/Cargo.toml"}, paths)

	stop := errors.New("stop")
	var count int
	err := r.ListFiles(ctx, "", repository.Head, func(string) error {
		count++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, count)
}

func TestUpdateBranch(t *testing.T) {
	ctx := context.Background()
	r := testRepo()
	base, err := r.Resolve(ctx, repository.Head)
	require.NoError(t, err)

	bundle := repository.EditBundle{
		Message: "release",
		Edits: []repository.Edit{
			{Path: "Cargo.toml", Content: []byte("[package]\nname = \"a\"\nversion = \"1.0.0\"\n")},
			{Path: "CHANGELOG.md", Content: []byte("# Changelog\n")},
		},
	}

	t.Run("creates branch from current base", func(t *testing.T) {
		head, err := r.UpdateBranch(ctx, "release/1.0.0", base, bundle)
		require.NoError(t, err)

		parent, err := r.Parent(head)
		require.NoError(t, err)
		assert.Equal(t, base, parent, "all edits land in a single commit on top of base")

		for _, edit := range bundle.Edits {
			content, err := r.ReadFile(ctx, edit.Path, repository.Branch("release/1.0.0"))
			require.NoError(t, err)
			assert.Equal(t, edit.Content, content)
		}
		_, err = r.ReadFile(ctx, "crates/b/lib.rs", head)
		require.NoError(t, err)

		_, err = r.ReadFile(ctx, "CHANGELOG.md", base)
		assert.True(t, errors.Is(err, status.ErrNotFound), "base is left untouched")
	})

	t.Run("stale base conflicts", func(t *testing.T) {
		before, err := r.BranchHead(ctx, "release/1.0.0")
		require.NoError(t, err)

		_, err = r.UpdateBranch(ctx, "release/1.0.0", base, bundle)
		assert.True(t, errors.Is(err, status.ErrConflict))

		after, err := r.BranchHead(ctx, "release/1.0.0")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("unknown base", func(t *testing.T) {
		_, err := r.UpdateBranch(ctx, "other", "nope", bundle)
		assert.True(t, errors.Is(err, status.ErrNotFound))
	})

	t.Run("missing branch", func(t *testing.T) {
		_, err := r.BranchHead(ctx, "nope")
		assert.True(t, errors.Is(err, status.ErrNotFound))
	})
}

func TestReleaseRequests(t *testing.T) {
	ctx := context.Background()
	r := testRepo()

	_, err := r.OpenOrUpdateReleaseRequest(ctx, "release/1.0.0", "t", "b")
	assert.True(t, errors.Is(err, status.ErrNotFound))

	_, err = r.Push("release/1.0.0", "wip", map[string]string{"x": "y"})
	require.NoError(t, err)

	id, err := r.OpenOrUpdateReleaseRequest(ctx, "release/1.0.0", "Release 1.0.0", "body")
	require.NoError(t, err)
	again, err := r.OpenOrUpdateReleaseRequest(ctx, "release/1.0.0", "Release 1.0.0", "new body")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	req, ok := r.Request("release/1.0.0")
	require.True(t, ok)
	assert.Equal(t, "new body", req.Body)
	assert.Equal(t, "main", req.Base)

	merged, err := r.Merge("release/1.0.0")
	require.NoError(t, err)
	head, err := r.Resolve(ctx, repository.Head)
	require.NoError(t, err)
	assert.Equal(t, merged, head)

	next, err := r.OpenOrUpdateReleaseRequest(ctx, "release/1.0.0", "Release 1.0.0", "body")
	require.NoError(t, err)
	assert.NotEqual(t, id, next, "a merged request is never reopened")
}

func TestDispatchAndReleases(t *testing.T) {
	ctx := context.Background()
	r := testRepo()

	require.NoError(t, r.TriggerDispatch(ctx, repository.Event{ID: "1", Type: "package-released"}))
	assert.Len(t, r.Events(), 1)

	_, err := r.CreateRelease(ctx, repository.ReleaseSpec{Tag: "1.0.0", Target: repository.Head})
	require.NoError(t, err)
	tagged, err := r.Resolve(ctx, repository.Tag("1.0.0"))
	require.NoError(t, err)
	head, err := r.Resolve(ctx, repository.Head)
	require.NoError(t, err)
	assert.Equal(t, head, tagged)

	_, err = r.CreateRelease(ctx, repository.ReleaseSpec{Tag: "1.0.0", Target: repository.Head})
	assert.True(t, errors.Is(err, status.ErrConflict))
	assert.Len(t, r.Releases(), 1)

	branch, err := r.DefaultBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestHooks(t *testing.T) {
	ctx := context.Background()
	r := testRepo()
	var called int
	r.OnNext("Resolve", func() { called++ })

	_, err := r.Resolve(ctx, repository.Head)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, repository.Head)
	require.NoError(t, err)
	assert.Equal(t, 1, called)
}
