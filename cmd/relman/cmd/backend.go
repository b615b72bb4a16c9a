package cmd

import (
	"context"
	"fmt"

	"github.com/oneconcern/relman/pkg/project"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/fs"
	"github.com/oneconcern/relman/pkg/repository/git"
	"github.com/oneconcern/relman/pkg/repository/github"
	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/opentracing/opentracing-go"
	"github.com/spf13/afero"
)

// appFs is the local filesystem, patched during tests
var appFs = afero.NewOsFs()

func localSnapshot() *fs.Snapshot {
	return fs.New(afero.NewBasePathFs(appFs, params.backend.dir))
}

func githubToken() string {
	if params.backend.token != "" {
		return params.backend.token
	}
	return settings.GitHub.Token
}

func openGitHub() (*github.Repository, error) {
	if params.backend.repo == "" {
		return nil, fmt.Errorf("the github backend requires a repository name (--repo owner/name)")
	}
	owner, name, err := github.ParseFullName(params.backend.repo)
	if err != nil {
		return nil, err
	}
	opts := []github.Option{
		github.Logger(logger()),
		github.Token(githubToken()),
		github.UserAgent("relman/" + currentBuild().Version),
	}
	if settings.GitHub.APIURL != "" {
		opts = append(opts, github.BaseURL(settings.GitHub.APIURL))
	}
	return github.New(owner, name, opts...), nil
}

// openBackend builds the repository backend selected by flags
func openBackend() (repository.Backend, error) {
	var backend repository.Backend
	switch params.backend.kind {
	case backendFS:
		backend = localSnapshot()
	case backendGit:
		backend = git.New(params.backend.dir, git.Logger(logger()))
	case backendGitHub:
		gh, err := openGitHub()
		if err != nil {
			return nil, err
		}
		backend = gh
	default:
		return nil, status.ErrNotSupported.Wrapf("unknown backend %q", params.backend.kind)
	}
	return repository.Instrument(opentracing.GlobalTracer(), logger(), backend), nil
}

func openRemote() (repository.Remote, error) {
	backend, err := openBackend()
	if err != nil {
		return nil, err
	}
	remote, ok := backend.(repository.Remote)
	if !ok {
		return nil, status.ErrNotSupported.Wrapf("the %s backend cannot open pull requests: use --backend github or --dry-run", params.backend.kind)
	}
	return remote, nil
}

func openProject(ctx context.Context) (*project.Project, error) {
	backend, err := openBackend()
	if err != nil {
		return nil, err
	}
	return project.Open(ctx, backend, repository.Revision(params.backend.ref), project.Logger(logger()))
}

func findPackage(ctx context.Context, proj *project.Project, name string) (*project.Package, error) {
	discovery, err := proj.Discover(ctx)
	if err != nil {
		return nil, err
	}
	for _, perr := range discovery.Errors {
		logger().Warn(perr.Error())
	}
	pkg, ok := discovery.Find(name)
	if !ok {
		return nil, status.ErrNotFound.Wrapf("package %q not found in %s", name, proj.Backend())
	}
	return pkg, nil
}
