// Package project discovers the packages of a project, at some revision of a repository.
package project

import (
	"context"
	"path"
	"strings"

	"github.com/oneconcern/relman/pkg/cache"
	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/manifest"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Project is a view over a repository at one resolved revision.
//
// A project is not safe for concurrent use, and must not be retained across
// updates of the repository.
type Project struct {
	backend repository.Backend
	cache   *cache.FileCache
	ref     repository.Revision
	rev     repository.Revision
	kinds   []manifest.Kind
	l       *zap.Logger
}

// Open a project at some revision, which may be symbolic
func Open(ctx context.Context, backend repository.Backend, ref repository.Revision, opts ...Option) (*Project, error) {
	p := defaultProject()
	for _, apply := range opts {
		apply(p)
	}
	if ref.IsZero() {
		ref = repository.Head
	}
	rev, err := backend.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	p.backend = backend
	p.cache = cache.New(backend)
	p.ref = ref
	p.rev = rev
	p.l = p.l.With(zap.Stringer("repository", backend), zap.String("revision", rev.String()))
	p.l.Debug("project opened", zap.String("ref", ref.String()))
	return p, nil
}

// Backend of this project
func (p *Project) Backend() repository.Backend {
	return p.backend
}

// Revision this project is bound to
func (p *Project) Revision() repository.Revision {
	return p.rev
}

// Cache used to read files
func (p *Project) Cache() *cache.FileCache {
	return p.cache
}

// Refresh resolves the reference again. When the revision has moved, cached files are discarded.
func (p *Project) Refresh(ctx context.Context) (bool, error) {
	rev, err := p.backend.Resolve(ctx, p.ref)
	if err != nil {
		return false, err
	}
	if rev == p.rev {
		return false, nil
	}
	p.l.Debug("project moved", zap.String("from", p.rev.String()), zap.String("to", rev.String()))
	p.rev = rev
	p.cache.Reset()
	p.l = p.l.With(zap.String("revision", rev.String()))
	return true, nil
}

// At returns a view of the same project at another revision
func (p *Project) At(ctx context.Context, ref repository.Revision) (*Project, error) {
	return Open(ctx, p.backend, ref, Logger(p.l), Kinds(p.kinds...))
}

// ReadFile at the revision of the project
func (p *Project) ReadFile(ctx context.Context, pth string) ([]byte, error) {
	return p.cache.ReadFile(ctx, pth, p.rev)
}

// ListFiles at the revision of the project
func (p *Project) ListFiles(ctx context.Context, pattern string, apply repository.ApplyPathFunc) error {
	return p.backend.ListFiles(ctx, pattern, p.rev, apply)
}

// UpdateBranch commits a bundle of edits on a branch, if the repository supports it
func (p *Project) UpdateBranch(ctx context.Context, branch string, base repository.Revision, bundle repository.EditBundle) (repository.Revision, error) {
	brancher, ok := p.backend.(repository.Brancher)
	if !ok {
		return "", status.ErrNotSupported.Wrapf("%v does not support branches", p.backend)
	}
	head, err := brancher.UpdateBranch(ctx, branch, base, bundle)
	if err != nil {
		return "", err
	}
	p.cache.DiscardMissing()
	return head, nil
}

// ignored directories are never searched for packages
func ignored(dir string) bool {
	if dir == "." {
		return false
	}
	for _, segment := range strings.Split(dir, "/") {
		if segment == "target" || segment == "node_modules" || strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

// workspace returns the members declared by the root manifest of some kind
func (p *Project) workspace(ctx context.Context, kind manifest.Kind) (manifest.Members, bool, error) {
	content, err := p.ReadFile(ctx, kind.FileName())
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return manifest.Members{}, false, nil
		}
		return manifest.Members{}, false, err
	}
	m, err := manifest.Parse(kind, content)
	if err != nil {
		// reported by the root package itself
		p.l.Debug("root manifest cannot be parsed", zap.String("kind", string(kind)), zap.Error(err))
		return manifest.Members{}, true, nil
	}
	members := m.Members()
	if bad := members.Malformed(); len(bad) > 0 {
		p.l.Warn("malformed workspace member globs match no package", zap.String("kind", string(kind)), zap.Strings("globs", bad))
	}
	return members, m.IsPackage(), nil
}

// ListPackages calls apply for each package of the project, in listing order.
// Manifests are not read, except for the root manifest of each kind. Returning an
// error from apply stops the listing.
func (p *Project) ListPackages(ctx context.Context, apply func(*Package) error) error {
	for _, kind := range p.kinds {
		kind := kind
		members, rootIsPackage, err := p.workspace(ctx, kind)
		if err != nil {
			return err
		}
		err = p.ListFiles(ctx, kind.Pattern(), func(pth string) error {
			dir := path.Dir(pth)
			if ignored(dir) {
				return nil
			}
			switch {
			case members.Empty():
			case dir == ".":
				if !rootIsPackage {
					return nil
				}
			case !members.Match(dir):
				p.l.Debug("not a workspace member", zap.String("path", pth))
				return nil
			}
			return apply(newPackage(p, kind, pth))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Discovery holds the packages of a project, and the manifests which could not be parsed
type Discovery struct {
	Packages []*Package
	Errors   []*ParseError
}

// Err combines all parse errors
func (d Discovery) Err() error {
	errs := make([]error, 0, len(d.Errors))
	for _, e := range d.Errors {
		errs = append(errs, e)
	}
	return multierr.Combine(errs...)
}

// Find a package by name
func (d Discovery) Find(name string) (*Package, bool) {
	for _, pkg := range d.Packages {
		if pkg.Name() == name {
			return pkg, true
		}
	}
	return nil, false
}

// Dependents returns the packages which depend on some package
func (d Discovery) Dependents(name string) []*Package {
	var res []*Package
	for _, pkg := range d.Packages {
		if pkg.Name() != name && pkg.DependsOn(name) {
			res = append(res, pkg)
		}
	}
	return res
}

// Discover loads all packages. Malformed manifests are reported in the discovery
// without failing the others. Any other error aborts the discovery.
func (p *Project) Discover(ctx context.Context) (Discovery, error) {
	var d Discovery
	err := p.ListPackages(ctx, func(pkg *Package) error {
		_, err := pkg.Manifest(ctx)
		var perr *ParseError
		switch {
		case err == nil:
			d.Packages = append(d.Packages, pkg)
		case errors.As(err, &perr):
			p.l.Warn("skipping package", zap.String("path", perr.Path), zap.Error(perr.Err))
			d.Errors = append(d.Errors, perr)
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return Discovery{}, err
	}
	p.l.Debug("packages discovered", zap.Int("packages", len(d.Packages)), zap.Int("errors", len(d.Errors)))
	return d, nil
}
