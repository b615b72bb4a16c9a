// Package release builds release requests for the packages of a project, and publishes
// releases once their requests are merged.
package release

import (
	"context"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/changelog"
	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/metrics"
	"github.com/oneconcern/relman/pkg/project"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/oneconcern/relman/pkg/version"
	"go.uber.org/zap"
)

// Request is a release request built for a package
type Request struct {
	Package string
	Version semver.Version
	Primary bool
	Branch  string
	Title   string
	Body    string

	// Notes of the new release
	Notes changelog.Release

	Bundle repository.EditBundle
	Base   repository.Revision
	Head   repository.Revision
	ID     repository.RequestID

	// Attempts made to update the release branch
	Attempts int

	// Resumed is true when the release branch already carried the new version
	Resumed bool
}

// Builder builds release requests on a remote repository
type Builder struct {
	remote repository.Remote
	settings
}

// NewBuilder creates a release builder
func NewBuilder(remote repository.Remote, opts ...Option) *Builder {
	b := &Builder{remote: remote, settings: defaultSettings()}
	for _, apply := range opts {
		apply(&b.settings)
	}
	return b
}

// Build a release request for a package, from the default branch of the remote
func (b *Builder) Build(ctx context.Context, name string, req version.Request) (*Request, error) {
	return b.BuildOn(ctx, "", name, req)
}

// BuildOn builds a release request for a package, from some base branch.
//
// A conflicting update of the release branch is recomputed from fresh content,
// up to the maximum number of retries.
func (b *Builder) BuildOn(ctx context.Context, baseBranch, name string, req version.Request) (*Request, error) {
	l := b.l.With(zap.String("package", name), zap.Stringer("request", req))
	if baseBranch == "" {
		branch, err := b.remote.DefaultBranch(ctx)
		if err != nil {
			return nil, err
		}
		baseBranch = branch
	}

	var (
		res *Request
		err error
	)
	for attempt := 1; attempt <= b.maxRetries+1; attempt++ {
		res, err = b.attempt(ctx, l, baseBranch, name, req)
		if err == nil {
			res.Attempts = attempt
			break
		}
		if !errors.Is(err, status.ErrConflict) || attempt > b.maxRetries {
			break
		}
		metrics.ConflictRetries.Inc()
		l.Info("release branch moved, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		metrics.ReleaseRequests.WithLabelValues(metrics.Outcome(err)).Inc()
		return nil, err
	}

	res.ID, err = b.remote.OpenOrUpdateReleaseRequest(ctx, res.Branch, res.Title, res.Body)
	metrics.ReleaseRequests.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	l.Info("release request ready",
		zap.String("version", res.Version.String()),
		zap.String("branch", res.Branch),
		zap.Int64("id", int64(res.ID)),
		zap.Bool("resumed", res.Resumed),
	)
	return res, nil
}

// attempt computes the edits from the current state of the remote and updates the release branch
func (b *Builder) attempt(ctx context.Context, l *zap.Logger, baseBranch, name string, req version.Request) (*Request, error) {
	proj, err := project.Open(ctx, b.remote, repository.Branch(baseBranch), project.Logger(l))
	if err != nil {
		return nil, err
	}
	discovery, err := proj.Discover(ctx)
	if err != nil {
		return nil, err
	}
	pkg, ok := discovery.Find(name)
	if !ok {
		return nil, status.ErrNotFound.Wrapf("package %q", name)
	}
	cfg, err := proj.Config(ctx)
	if err != nil {
		return nil, err
	}

	cl, _, err := pkg.Changelog(ctx)
	if err != nil {
		return nil, err
	}
	var (
		entries    []changelog.Entry
		categories []changelog.Category
	)
	if unreleased := cl.Unreleased(); unreleased != nil {
		entries = unreleased.Entries()
		categories = unreleased.Categories()
	}
	if len(entries) == 0 && (req.Inferred() || !b.allowEmpty) {
		return nil, status.ErrNothingToRelease.Wrapf("no unreleased changes for package %q", name)
	}

	next, err := version.Next(pkg.Version(), req, categories, b.policy)
	if err != nil {
		return nil, err
	}

	primary := isPrimary(cfg, pkg)
	res := &Request{
		Package: name,
		Version: next,
		Primary: primary,
		Branch:  BranchName(name, next, primary),
		Title:   Title(name, next, primary),
		Base:    proj.Revision(),
	}
	l = l.With(zap.String("version", next.String()), zap.String("branch", res.Branch))

	res.Notes = changelog.NewRelease(next, entries, b.now().UTC())
	res.Notes.Description = description(name, next)
	res.Body = res.Notes.String()

	// the release branch may already exist, from a previous attempt
	target := proj
	head, err := b.remote.BranchHead(ctx, res.Branch)
	switch {
	case err == nil:
		res.Base = head
		if target, err = proj.At(ctx, head); err != nil {
			return nil, err
		}
	case errors.Is(err, status.ErrNotFound):
	default:
		return nil, err
	}

	if target != proj {
		resumed, err := alreadyReleased(ctx, target, name, next)
		if err != nil {
			return nil, err
		}
		if resumed {
			l.Info("release branch already carries the version")
			res.Head = head
			res.Resumed = true
			return res, nil
		}
	}

	bundle, err := b.edits(ctx, target, name, next, entries)
	if err != nil {
		return nil, err
	}
	bundle.Message = res.Title
	res.Bundle = bundle

	res.Head, err = target.UpdateBranch(ctx, res.Branch, res.Base, bundle)
	if err != nil {
		return nil, err
	}
	l.Debug("release branch updated", zap.String("head", res.Head.String()), zap.Strings("paths", bundle.Paths()))
	return res, nil
}

func alreadyReleased(ctx context.Context, proj *project.Project, name string, v semver.Version) (bool, error) {
	discovery, err := proj.Discover(ctx)
	if err != nil {
		return false, err
	}
	pkg, ok := discovery.Find(name)
	return ok && pkg.Version().EQ(v), nil
}

// edits computes the bundle of file edits for a release, against the content of a project
func (b *Builder) edits(ctx context.Context, proj *project.Project, name string, next semver.Version, entries []changelog.Entry) (repository.EditBundle, error) {
	var bundle repository.EditBundle
	discovery, err := proj.Discover(ctx)
	if err != nil {
		return bundle, err
	}
	pkg, ok := discovery.Find(name)
	if !ok {
		return bundle, status.ErrNotFound.Wrapf("package %q", name)
	}
	m, err := pkg.Manifest(ctx)
	if err != nil {
		return bundle, err
	}
	content, err := m.WithVersion(next)
	if err != nil {
		return bundle, err
	}
	bundle.Edits = append(bundle.Edits, repository.Edit{Path: pkg.ManifestPath(), Content: content})

	if b.updateDependents {
		for _, dependent := range discovery.Dependents(name) {
			dm, err := dependent.Manifest(ctx)
			if err != nil {
				return bundle, err
			}
			content, changed, err := dm.WithDependencyVersion(name, next)
			if err != nil {
				return bundle, err
			}
			if changed {
				bundle.Edits = append(bundle.Edits, repository.Edit{Path: dependent.ManifestPath(), Content: content})
			}
		}
	}

	if b.updateLockfile {
		pth, lock, err := pkg.Lockfile(ctx)
		if err != nil {
			return bundle, err
		}
		if lock != nil {
			content, found, err := lock.WithPackageVersion(name, next)
			if err != nil {
				return bundle, err
			}
			if found {
				bundle.Edits = append(bundle.Edits, repository.Edit{Path: pth, Content: content})
			}
		}
	}

	if b.updateChangelog {
		cl, _, err := pkg.Changelog(ctx)
		if err != nil {
			return bundle, err
		}
		if _, err := cl.AddRelease(next, entries, b.now().UTC()); err != nil {
			return bundle, status.ErrInvalidBump.Wrap(err)
		}
		bundle.Edits = append(bundle.Edits, repository.Edit{Path: pkg.ChangelogPath(), Content: cl.Bytes()})
	}
	return bundle, nil
}
