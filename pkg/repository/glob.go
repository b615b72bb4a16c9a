package repository

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Match reports whether a slash-separated file path matches a glob pattern.
//
// A "**" segment matches any number of segments, including none. An empty pattern matches everything.
// Malformed patterns match nothing.
func Match(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(pattern, strings.Trim(name, "/"))
	return err == nil && ok
}

// ValidPattern checks that a glob pattern is well-formed
func ValidPattern(pattern string) bool {
	return doublestar.ValidatePattern(pattern)
}
