package manifest

import (
	"strings"
	"testing"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCargoManifest(t *testing.T) {
	m, err := Parse(Cargo, []byte(cargoPackage))
	require.NoError(t, err)

	assert.Equal(t, Cargo, m.Kind())
	assert.True(t, m.IsPackage())
	assert.Equal(t, "core", m.Name())
	assert.Equal(t, "0.1.0", m.Version().String())
	assert.True(t, m.Members().Empty())

	deps := m.Dependencies()
	require.Len(t, deps, 6)
	byName := make(map[string]Dependency)
	for _, dep := range deps {
		if dep.Kind == Normal {
			byName[dep.Name] = dep
		}
	}
	assert.Equal(t, "^0.3.1", byName["util"].Requirement)
	assert.Equal(t, "../util", byName["util"].Path)
	assert.Equal(t, "~0.3.1", byName["other"].Requirement)
	assert.Equal(t, "=0.3.1", byName["quoted"].Requirement)
}

func TestCargoWithVersion(t *testing.T) {
	m, err := Parse(Cargo, []byte(cargoPackage))
	require.NoError(t, err)

	content, err := m.WithVersion(semver.MustParse("0.2.0"))
	require.NoError(t, err)
	assert.Equal(t,
		strings.Replace(cargoPackage, `version = "0.1.0" # bumped`, `version = "0.2.0" # bumped`, 1),
		string(content))

	// a missing version is inserted after the name
	m, err = Parse(Cargo, []byte("[package]\nname = \"bare\"\n\n[dependencies]\n"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", m.Version().String())
	content, err = m.WithVersion(semver.MustParse("0.1.0"))
	require.NoError(t, err)
	assert.Equal(t, "[package]\nname = \"bare\"\nversion = \"0.1.0\"\n\n[dependencies]\n", string(content))

	m, err = Parse(Cargo, []byte("[package]\nname = \"inherited\"\nversion.workspace = true\n"))
	require.NoError(t, err)
	_, err = m.WithVersion(semver.MustParse("0.1.0"))
	assert.True(t, status.ErrNotSupported.Is(err))

	m, err = Parse(Cargo, []byte(cargoWorkspace))
	require.NoError(t, err)
	_, err = m.WithVersion(semver.MustParse("0.1.0"))
	assert.True(t, status.ErrNotSupported.Is(err))
}

func TestCargoWithDependencyVersion(t *testing.T) {
	t.Parallel()

	m, err := Parse(Cargo, []byte(cargoPackage))
	require.NoError(t, err)

	tests := []struct {
		name     string
		changed  bool
		expected []string
	}{
		{name: "util", changed: true, expected: []string{
			`util = { path = "../util", version = "^0.4.0" }`,
			"[dev-dependencies]\nutil = \"0.4.0\"",
		}},
		{name: "other", changed: true, expected: []string{"[dependencies.other]\npath = \"../other\"\nversion = \"~0.4.0\""}},
		{name: "quoted", changed: true, expected: []string{`"quoted" = "=0.4.0"`}},
		{name: "any", changed: false, expected: []string{`any = "*"`}},
		{name: "missing", changed: false},
	}
	for _, tts := range tests {
		tt := tts
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			content, changed, err := m.WithDependencyVersion(tt.name, semver.MustParse("0.4.0"))
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			for _, fragment := range tt.expected {
				assert.Contains(t, string(content), fragment)
			}
			if !tt.changed {
				assert.Equal(t, cargoPackage, string(content))
			}
		})
	}
}

func TestCargoWorkspace(t *testing.T) {
	m, err := Parse(Cargo, []byte(cargoWorkspace))
	require.NoError(t, err)
	assert.False(t, m.IsPackage())

	members := m.Members()
	assert.Equal(t, []string{"crates/*", "tools/cli", "extra"}, members.Includes)
	assert.Equal(t, []string{"crates/legacy"}, members.Excludes)
	assert.True(t, members.Match("crates/a"))
	assert.True(t, members.Match("extra"))
	assert.False(t, members.Match("crates/legacy"))
}

func TestCargoParseErrors(t *testing.T) {
	for _, content := range []string{
		"[package\nname = 1",
		"[package]\nversion = \"0.1.0\"\n",
		"[package]\nname = \"x\"\nversion = \"one\"\n",
	} {
		_, err := Parse(Cargo, []byte(content))
		assert.Truef(t, status.ErrParse.Is(err), "expected a parse error for %q, got %v", content, err)
	}
}

const cargoLockFile = `# This file is automatically @generated by Cargo.
version = 3

[[package]]
name = "core"
version = "0.1.0"
dependencies = [
 "serde",
]

[[package]]
name = "serde"
version = "1.0.100"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "util"
version = "0.3.1"
`

func TestCargoLock(t *testing.T) {
	lock, err := ParseLockfile(Cargo, []byte(cargoLockFile))
	require.NoError(t, err)
	assert.Equal(t, Cargo, lock.Kind())

	v, ok := lock.PackageVersion("util")
	require.True(t, ok)
	assert.Equal(t, "0.3.1", v)

	content, found, err := lock.WithPackageVersion("core", semver.MustParse("0.2.0"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t,
		strings.Replace(cargoLockFile, "name = \"core\"\nversion = \"0.1.0\"", "name = \"core\"\nversion = \"0.2.0\"", 1),
		string(content))

	content, found, err = lock.WithPackageVersion("util", semver.MustParse("0.4.0"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, strings.HasSuffix(string(content), "name = \"util\"\nversion = \"0.4.0\"\n"))

	// registry packages are never rewritten
	content, found, err = lock.WithPackageVersion("serde", semver.MustParse("2.0.0"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, cargoLockFile, string(content))

	_, err = ParseLockfile(Cargo, []byte("[[package]"))
	assert.True(t, status.ErrParse.Is(err))
}
