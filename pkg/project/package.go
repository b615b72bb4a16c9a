package project

import (
	"context"
	"path"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/changelog"
	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/manifest"
	"github.com/oneconcern/relman/pkg/repository/status"
)

// ChangelogName is the file name of package changelogs
const ChangelogName = "CHANGELOG.md"

// Package of a project. Its manifest is loaded on first access.
type Package struct {
	project *Project
	kind    manifest.Kind
	path    string

	m   manifest.Manifest
	err error
}

func newPackage(p *Project, kind manifest.Kind, pth string) *Package {
	return &Package{project: p, kind: kind, path: pth}
}

// Kind of package
func (p *Package) Kind() manifest.Kind {
	return p.kind
}

// ManifestPath is the path of the manifest in the repository
func (p *Package) ManifestPath() string {
	return p.path
}

// Dir is the directory of the package, "." for the root of the repository
func (p *Package) Dir() string {
	return path.Dir(p.path)
}

// ChangelogPath is the path of the package changelog
func (p *Package) ChangelogPath() string {
	return path.Join(p.Dir(), ChangelogName)
}

// Manifest of the package. Successful loads and parse errors are memoized.
func (p *Package) Manifest(ctx context.Context) (manifest.Manifest, error) {
	if p.m != nil || p.err != nil {
		return p.m, p.err
	}
	content, err := p.project.ReadFile(ctx, p.path)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(p.kind, content)
	switch {
	case err != nil:
		p.err = newParseError(p.path, err)
	case !m.IsPackage():
		p.err = newParseError(p.path, status.ErrParse.Wrapf("manifest declares no package"))
	default:
		p.m = m
	}
	return p.m, p.err
}

// Name of the package, once loaded
func (p *Package) Name() string {
	if p.m == nil {
		return ""
	}
	return p.m.Name()
}

// Version of the package, once loaded
func (p *Package) Version() semver.Version {
	if p.m == nil {
		return semver.Version{}
	}
	return p.m.Version()
}

// DependsOn tells if the package declares a dependency on another, once loaded
func (p *Package) DependsOn(name string) bool {
	if p.m == nil {
		return false
	}
	for _, dep := range p.m.Dependencies() {
		if dep.Name == name {
			return true
		}
	}
	return false
}

// Lockfile looks up the lockfile of the package: first in the package directory, then at the root
// of the project. It returns an empty path when there is none.
func (p *Package) Lockfile(ctx context.Context) (string, manifest.Lockfile, error) {
	candidates := []string{path.Join(p.Dir(), p.kind.LockfileName())}
	if p.Dir() != "." {
		candidates = append(candidates, p.kind.LockfileName())
	}
	for _, candidate := range candidates {
		content, err := p.project.ReadFile(ctx, candidate)
		if err != nil {
			if errors.Is(err, status.ErrNotFound) {
				continue
			}
			return "", nil, err
		}
		lock, err := manifest.ParseLockfile(p.kind, content)
		if err != nil {
			return "", nil, newParseError(candidate, err)
		}
		return candidate, lock, nil
	}
	return "", nil, nil
}

// Changelog of the package. A missing changelog yields a new, empty one.
func (p *Package) Changelog(ctx context.Context) (*changelog.Changelog, bool, error) {
	content, err := p.project.ReadFile(ctx, p.ChangelogPath())
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return changelog.New(), false, nil
		}
		return nil, false, err
	}
	return changelog.ParseBytes(content), true, nil
}

// Info summarizes a loaded package
type Info struct {
	Name         string   `json:"name" yaml:"name"`
	Version      string   `json:"version" yaml:"version"`
	Kind         string   `json:"kind" yaml:"kind"`
	Path         string   `json:"path" yaml:"path"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Info about the package
func (p *Package) Info(ctx context.Context) (Info, error) {
	m, err := p.Manifest(ctx)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Name:        m.Name(),
		Version:     m.Version().String(),
		Kind:        string(p.kind),
		Path:        p.Dir(),
		Description: m.Description(),
	}
	for _, dep := range m.Dependencies() {
		info.Dependencies = append(info.Dependencies, dep.Name)
	}
	return info, nil
}
