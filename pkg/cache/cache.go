// Package cache memoizes file reads from a repository backend, per (path, revision).
package cache

import (
	"context"
	"sync"

	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/metrics"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
)

type key struct {
	path string
	rev  repository.Revision
}

// entry holds either some content or a not found error
type entry struct {
	content []byte
	err     error
}

// Stats about cache usage
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
	Bytes   int64
}

// FileCache memoizes successful reads and NotFound outcomes.
//
// Transient failures are never stored. Entries are only discarded with Reset
// or DiscardMissing.
type FileCache struct {
	backend repository.Backend

	mu      sync.Mutex
	entries map[key]entry
	hits    uint64
	misses  uint64
}

// New file cache over some backend
func New(backend repository.Backend) *FileCache {
	return &FileCache{
		backend: backend,
		entries: make(map[key]entry),
	}
}

// Backend wrapped by this cache
func (c *FileCache) Backend() repository.Backend {
	return c.backend
}

// ReadFile returns the content of a file at some revision.
//
// The returned slice is shared with the cache and must not be modified.
func (c *FileCache) ReadFile(ctx context.Context, path string, rev repository.Revision) ([]byte, error) {
	k := key{path: path, rev: rev}

	c.mu.Lock()
	e, ok := c.entries[k]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return e.content, e.err
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	content, err := c.backend.ReadFile(ctx, path, rev)
	switch {
	case err == nil:
		e = entry{content: content}
	case errors.Is(err, status.ErrNotFound):
		e = entry{err: err}
	default:
		return nil, err
	}

	c.mu.Lock()
	c.entries[k] = e
	c.mu.Unlock()

	return e.content, e.err
}

// Exists tells if a file exists at some revision
func (c *FileCache) Exists(ctx context.Context, path string, rev repository.Revision) (bool, error) {
	_, err := c.ReadFile(ctx, path, rev)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, status.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// DiscardMissing drops all cached NotFound outcomes, e.g. after the repository has been mutated
func (c *FileCache) DiscardMissing() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if e.err != nil {
			delete(c.entries, k)
		}
	}
}

// Reset discards all entries
func (c *FileCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[key]entry)
}

// Stats about this cache
func (c *FileCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
	for _, e := range c.entries {
		s.Bytes += int64(len(e.content))
	}
	return s
}
