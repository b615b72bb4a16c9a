// Copyright © 2018 One Concern

// Package fs implements a read-mostly repository over a plain filesystem snapshot.
//
// A filesystem snapshot has a single revision, repository.WorkTree. Branch
// operations are not supported, but edits may be written in place with Apply.
package fs

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/spf13/afero"
)

// stagePrefix is the staging area for edits, at the root of the filesystem
const stagePrefix = ".relman-stage"

var _ repository.Backend = &Snapshot{}

// New creates a filesystem backed repository
func New(fs afero.Fs) *Snapshot {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), ".")
	}
	return &Snapshot{
		fs: fs,
	}
}

// NewAt creates a filesystem backed repository rooted at some directory of the local filesystem
func NewAt(root string) *Snapshot {
	return New(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// Snapshot is a repository backed by a plain filesystem
type Snapshot struct {
	fs afero.Fs
}

func (l *Snapshot) String() string {
	const fsName = "fs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return fsName
		}
		return fsName + "@" + pp
	default:
		return fsName
	}
}

func checkRevision(rev repository.Revision) error {
	switch rev {
	case "", repository.Head, repository.WorkTree:
		return nil
	default:
		return status.ErrNotSupported.Wrapf("filesystem snapshots have no revision %q", rev)
	}
}

// Resolve any supported revision to the work tree
func (l *Snapshot) Resolve(_ context.Context, rev repository.Revision) (repository.Revision, error) {
	if err := checkRevision(rev); err != nil {
		return "", err
	}
	return repository.WorkTree, nil
}

// ReadFile from the filesystem
func (l *Snapshot) ReadFile(_ context.Context, key string, rev repository.Revision) ([]byte, error) {
	if err := checkRevision(rev); err != nil {
		return nil, err
	}
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotFound.Wrapf("file %q", key)
		}
		return nil, status.ErrTransient.Wrap(err)
	}
	if fi.IsDir() {
		return nil, status.ErrNotFound.Wrapf("%q is a directory", key)
	}

	content, err := afero.ReadFile(l.fs, key)
	if err != nil {
		return nil, status.ErrTransient.Wrap(err)
	}
	return content, nil
}

// ListFiles walks the filesystem in lexical order, skipping version control metadata
func (l *Snapshot) ListFiles(_ context.Context, pattern string, rev repository.Revision, apply repository.ApplyPathFunc) error {
	if err := checkRevision(rev); err != nil {
		return err
	}
	const root = "."
	var applyErr error
	e := afero.Walk(l.fs, root, func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		key := normalize(pth)
		if key == "" {
			return nil
		}
		if info.IsDir() {
			if name := info.Name(); name == ".git" || name == stagePrefix {
				return filepath.SkipDir
			}
			return nil
		}
		if !repository.Match(pattern, key) {
			return nil
		}
		if err := apply(key); err != nil {
			applyErr = err
			return err
		}
		return nil
	})
	if applyErr != nil {
		return applyErr
	}
	if e != nil {
		return status.ErrTransient.Wrap(e)
	}
	return nil
}

func normalize(pth string) string {
	key := filepath.ToSlash(pth)
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	if key == "." {
		return ""
	}
	return key
}

// Apply writes a bundle of edits in place.
//
// All edits are first written to a staging area, then renamed into place.
// Edits are not applied if any of them fails to stage. When moving an edit into
// place fails, the edits already moved are rolled back, but directories created
// for them are left behind. This is not atomic: an interrupted process may leave
// a partial write.
func (l *Snapshot) Apply(_ context.Context, bundle repository.EditBundle) error {
	if err := l.fs.MkdirAll(stagePrefix, 0700); err != nil {
		return status.ErrTransient.Wrap(fmt.Errorf("ensuring staging directory %q: %v", stagePrefix, err))
	}
	defer func() {
		_ = l.fs.RemoveAll(stagePrefix)
	}()

	staged := make([]string, 0, len(bundle.Edits))
	for i, edit := range bundle.Edits {
		key := path.Clean(normalize(edit.Path))
		if key == "" || key == "." || strings.HasPrefix(key, "../") || strings.HasPrefix(key, stagePrefix) {
			return fmt.Errorf("invalid edit path %q", edit.Path)
		}
		stageKey := path.Join(stagePrefix, fmt.Sprintf("%d", i))
		if err := afero.WriteFile(l.fs, stageKey, edit.Content, 0600); err != nil {
			return status.ErrTransient.Wrap(fmt.Errorf("staging %q: %v", edit.Path, err))
		}
		staged = append(staged, stageKey)
	}

	var moved []movedEdit
	for i, edit := range bundle.Edits {
		key := path.Clean(normalize(edit.Path))
		m, err := l.moveIntoPlace(staged[i], key)
		if err != nil {
			l.rollback(moved)
			return status.ErrTransient.Wrap(err)
		}
		moved = append(moved, m)
	}
	return nil
}

// movedEdit remembers the original content of a file replaced by an edit
type movedEdit struct {
	key    string
	backup string
}

func (l *Snapshot) moveIntoPlace(stageKey, key string) (movedEdit, error) {
	m := movedEdit{key: key}
	/* Rename() doesn't create directories automatically */
	if dir := path.Dir(key); dir != "." {
		if err := l.fs.MkdirAll(dir, 0755); err != nil {
			return m, fmt.Errorf("ensuring directories for %q: %v", key, err)
		}
	}
	if _, err := l.fs.Stat(key); err == nil {
		m.backup = stageKey + ".orig"
		if err := l.fs.Rename(key, m.backup); err != nil {
			return m, fmt.Errorf("saving %q: %v", key, err)
		}
	}
	if err := l.fs.Rename(stageKey, key); err != nil {
		l.rollback([]movedEdit{{backup: m.backup, key: key}})
		return m, fmt.Errorf("moving %q into place: %v", key, err)
	}
	if err := l.fs.Chmod(key, 0644); err != nil {
		l.rollback([]movedEdit{m})
		return m, fmt.Errorf("setting permissions of %q: %v", key, err)
	}
	return m, nil
}

// rollback restores replaced files and removes created ones, in reverse order
func (l *Snapshot) rollback(moved []movedEdit) {
	for i := len(moved) - 1; i >= 0; i-- {
		m := moved[i]
		if m.backup == "" {
			_ = l.fs.Remove(m.key)
			continue
		}
		_ = l.fs.Rename(m.backup, m.key)
	}
}
