package release

import (
	"context"
	"strings"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/changelog"
	"github.com/oneconcern/relman/pkg/project"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/oneconcern/relman/pkg/version"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Record of a published release
type Record struct {
	Package   string
	Version   semver.Version
	Revision  repository.Revision
	Tag       string
	ReleaseID repository.ReleaseID
	EventID   string
}

// Dispatcher publishes releases once release requests are merged, and requests new releases
type Dispatcher struct {
	remote repository.Remote
	settings
}

// NewDispatcher creates a dispatcher
func NewDispatcher(remote repository.Remote, opts ...Option) *Dispatcher {
	d := &Dispatcher{remote: remote, settings: defaultSettings()}
	for _, apply := range opts {
		apply(&d.settings)
	}
	return d
}

// IsReleaseBranch tells if a branch is a release branch
func IsReleaseBranch(branch string) bool {
	return strings.HasPrefix(branch, BranchPrefix) && len(branch) > len(BranchPrefix)
}

// HandleMerge publishes the release of the package designated by a merged release branch.
func (d *Dispatcher) HandleMerge(ctx context.Context, branch string, rev repository.Revision) (*Record, error) {
	if !IsReleaseBranch(branch) {
		return nil, status.ErrNotSupported.Wrapf("%q is not a release branch", branch)
	}
	l := d.l.With(zap.String("branch", branch), zap.String("revision", rev.String()))

	proj, err := project.Open(ctx, d.remote, rev, project.Logger(l))
	if err != nil {
		return nil, err
	}
	discovery, err := proj.Discover(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := proj.Config(ctx)
	if err != nil {
		return nil, err
	}

	suffix := strings.TrimPrefix(branch, BranchPrefix)
	var (
		pkg     *project.Package
		primary bool
	)
	for _, candidate := range discovery.Packages {
		p := isPrimary(cfg, candidate)
		if matchBranch(suffix, candidate, p) {
			pkg, primary = candidate, p
			break
		}
	}
	if pkg == nil {
		return nil, status.ErrNotFound.Wrapf("no package released by branch %q", branch)
	}

	v := pkg.Version()
	record := &Record{
		Package:  pkg.Name(),
		Version:  v,
		Revision: proj.Revision(),
		Tag:      TagName(pkg.Name(), v, primary),
	}
	l = l.With(zap.String("package", record.Package), zap.String("version", v.String()))

	cl, _, err := pkg.Changelog(ctx)
	if err != nil {
		return nil, err
	}
	notes := changelog.NewRelease(v, nil, d.now().UTC())
	if found := cl.Find(v.String()); found != nil {
		notes = *found
	}

	prerelease := len(v.Pre) > 0
	record.ReleaseID, err = d.remote.CreateRelease(ctx, repository.ReleaseSpec{
		Tag:        record.Tag,
		Target:     record.Revision,
		Name:       releaseName(record.Package, v, primary),
		Body:       notes.Notes(),
		Prerelease: prerelease,
		Latest:     primary && !prerelease,
	})
	if err != nil {
		return nil, err
	}
	l.Info("release created", zap.String("tag", record.Tag), zap.Int64("id", int64(record.ReleaseID)))

	record.EventID = ksuid.New().String()
	err = d.remote.TriggerDispatch(ctx, repository.Event{
		ID:   record.EventID,
		Type: EventReleased,
		Payload: map[string]interface{}{
			"package":  record.Package,
			"version":  v.String(),
			"tag":      record.Tag,
			"revision": record.Revision.String(),
		},
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RequestRelease asks downstream consumers to build a release request for a package
func (d *Dispatcher) RequestRelease(ctx context.Context, name string, req version.Request, branch string) (string, error) {
	id := ksuid.New().String()
	payload := map[string]interface{}{
		"package": name,
		"version": req.String(),
	}
	if branch != "" {
		payload["branch"] = branch
	}
	err := d.remote.TriggerDispatch(ctx, repository.Event{
		ID:      id,
		Type:    EventReleaseRequest,
		Payload: payload,
	})
	if err != nil {
		return "", err
	}
	d.l.Info("release requested", zap.String("package", name), zap.Stringer("version", req), zap.String("id", id))
	return id, nil
}
