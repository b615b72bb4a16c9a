package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{name: "empty pattern", pattern: "", path: "a/b/c", want: true},
		{name: "exact", pattern: "Cargo.toml", path: "Cargo.toml", want: true},
		{name: "exact no subdir", pattern: "Cargo.toml", path: "a/Cargo.toml", want: false},
		{name: "star segment", pattern: "packages/*", path: "packages/foo", want: true},
		{name: "star does not cross", pattern: "packages/*", path: "packages/foo/bar", want: false},
		{name: "double star root", pattern: "**/Cargo.toml", path: "Cargo.toml", want: true},
		{name: "double star nested", pattern: "**/Cargo.toml", path: "crates/a/Cargo.toml", want: true},
		{name: "double star middle", pattern: "crates/**/lib.rs", path: "crates/lib.rs", want: true},
		{name: "double star middle nested", pattern: "crates/**/lib.rs", path: "crates/a/src/lib.rs", want: true},
		{name: "trailing double star", pattern: "crates/**", path: "crates/a/b", want: true},
		{name: "question mark", pattern: "v?.txt", path: "v1.txt", want: true},
		{name: "class", pattern: "[ab].md", path: "c.md", want: false},
		{name: "malformed", pattern: "[", path: "[", want: false},
	}
	for _, tts := range tests {
		tt := tts
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Match(tt.pattern, tt.path))
		})
	}
}

func TestValidPattern(t *testing.T) {
	assert.True(t, ValidPattern("**/package.json"))
	assert.False(t, ValidPattern("a/[/b"))
}

func TestRevision(t *testing.T) {
	name, ok := Branch("release/1.0.0").BranchName()
	assert.True(t, ok)
	assert.Equal(t, "release/1.0.0", name)

	_, ok = Head.BranchName()
	assert.False(t, ok)

	tag, ok := Tag("v1.0.0").TagName()
	assert.True(t, ok)
	assert.Equal(t, "v1.0.0", tag)

	assert.True(t, Revision("").IsZero())
	assert.Equal(t, []string{"a", "b"}, EditBundle{Edits: []Edit{{Path: "a"}, {Path: "b"}}}.Paths())
}
