// Package manifest reads and edits package manifests and lockfiles.
//
// Two kinds of packages are supported: cargo (Cargo.toml, Cargo.lock) and
// npm (package.json, package-lock.json). Edits are applied to the original text,
// so that formatting, comments and unknown fields are preserved.
package manifest

import (
	"path"
	"strings"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
)

// Kind of package
type Kind string

// Supported kinds of packages
const (
	Cargo Kind = "cargo"
	Npm   Kind = "npm"
)

// Kinds returns all supported kinds of packages
func Kinds() []Kind {
	return []Kind{Cargo, Npm}
}

// ParseKind parses the name of a kind of package
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", status.ErrNotSupported.Wrapf("package kind %q", s)
}

// FileName of the manifest for this kind of package
func (k Kind) FileName() string {
	switch k {
	case Cargo:
		return "Cargo.toml"
	case Npm:
		return "package.json"
	default:
		return ""
	}
}

// LockfileName for this kind of package
func (k Kind) LockfileName() string {
	switch k {
	case Cargo:
		return "Cargo.lock"
	case Npm:
		return "package-lock.json"
	default:
		return ""
	}
}

// Pattern matching manifests of this kind anywhere in a repository
func (k Kind) Pattern() string {
	return "**/" + k.FileName()
}

// KindOf infers the kind of a manifest from its path
func KindOf(pth string) (Kind, bool) {
	base := path.Base(pth)
	for _, k := range Kinds() {
		if base == k.FileName() {
			return k, true
		}
	}
	return "", false
}

// DependencyKind tells in which section a dependency is declared
type DependencyKind string

// Dependency sections
const (
	Normal      DependencyKind = "normal"
	Development DependencyKind = "dev"
	Build       DependencyKind = "build"
	Peer        DependencyKind = "peer"
	Optional    DependencyKind = "optional"
)

// Dependency declared by a manifest
type Dependency struct {
	Name        string
	Requirement string
	Path        string
	Kind        DependencyKind
}

// Members of a workspace
type Members struct {
	Includes []string
	Excludes []string
}

// Empty tells if no members are declared
func (m Members) Empty() bool {
	return len(m.Includes) == 0
}

// Malformed lists the member globs which cannot match anything
func (m Members) Malformed() []string {
	var bad []string
	for _, include := range m.Includes {
		if !repository.ValidPattern(cleanDir(include)) {
			bad = append(bad, include)
		}
	}
	return bad
}

// Match tells if a package directory belongs to the workspace
func (m Members) Match(dir string) bool {
	dir = cleanDir(dir)
	for _, exclude := range m.Excludes {
		exclude = cleanDir(exclude)
		if dir == exclude || strings.HasPrefix(dir, exclude+"/") {
			return false
		}
	}
	for _, include := range m.Includes {
		if repository.Match(cleanDir(include), dir) {
			return true
		}
	}
	return false
}

func cleanDir(dir string) string {
	dir = strings.TrimPrefix(dir, "./")
	dir = strings.Trim(path.Clean("/"+dir), "/")
	return dir
}

// Manifest is a package manifest
type Manifest interface {
	Kind() Kind

	// IsPackage tells if this manifest describes a package (and not only a workspace)
	IsPackage() bool
	Name() string

	// Version of the package, 0.0.0 when not specified
	Version() semver.Version
	Description() string
	Dependencies() []Dependency
	Members() Members
	Bytes() []byte

	// WithVersion returns the manifest content with the package version updated
	WithVersion(semver.Version) ([]byte, error)

	// WithDependencyVersion returns the manifest content with requirements on a dependency
	// updated to some version. It reports whether any requirement was changed.
	WithDependencyVersion(name string, v semver.Version) ([]byte, bool, error)
}

// Lockfile pins the versions of packages
type Lockfile interface {
	Kind() Kind
	PackageVersion(name string) (string, bool)

	// WithPackageVersion returns the lockfile content with the version of a package updated.
	// It reports whether the package was found.
	WithPackageVersion(name string, v semver.Version) ([]byte, bool, error)
}

// Parse a manifest
func Parse(kind Kind, content []byte) (Manifest, error) {
	switch kind {
	case Cargo:
		return parseCargo(content)
	case Npm:
		return parseNpm(content)
	default:
		return nil, status.ErrNotSupported.Wrapf("package kind %q", kind)
	}
}

// ParseLockfile parses a lockfile
func ParseLockfile(kind Kind, content []byte) (Lockfile, error) {
	switch kind {
	case Cargo:
		return parseCargoLock(content)
	case Npm:
		return parseNpmLock(content)
	default:
		return nil, status.ErrNotSupported.Wrapf("package kind %q", kind)
	}
}

// New returns the content of a new manifest
func New(kind Kind, name, description string, v semver.Version) ([]byte, error) {
	switch kind {
	case Cargo:
		return newCargo(name, description, v), nil
	case Npm:
		return newNpm(name, description, v)
	default:
		return nil, status.ErrNotSupported.Wrapf("package kind %q", kind)
	}
}

// updateRequirement rewrites a version requirement for a new version, keeping its operator.
// Wildcard and complex requirements are left unchanged.
func updateRequirement(req string, v semver.Version) (string, bool) {
	prefix := ""
	rest := strings.TrimSpace(req)
	if strings.HasPrefix(rest, "workspace:") {
		prefix = "workspace:"
		rest = strings.TrimPrefix(rest, "workspace:")
	}
	if rest == "" || rest == "*" || strings.ContainsAny(rest, " ,|") {
		return req, false
	}
	i := strings.IndexFunc(rest, func(r rune) bool {
		return r >= '0' && r <= '9'
	})
	if i < 0 {
		return req, false
	}
	op := rest[:i]
	switch op {
	case "", "^", "~", "=", ">=", "v":
	default:
		return req, false
	}
	updated := prefix + op + v.String()
	return updated, updated != req
}
