package web

import (
	"context"

	"github.com/oneconcern/relman/pkg/release"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/version"
)

// Core runs release operations on behalf of webhook events
type Core interface {
	// HandleMerge publishes the release for a merged release branch
	HandleMerge(ctx context.Context, repo, branch string, rev repository.Revision) error

	// BuildRelease builds a release request for a package, from some branch
	BuildRelease(ctx context.Context, repo, branch, pkg string, req version.Request) error
}

// RemoteFactory opens a remote repository from its full name, e.g. owner/name
type RemoteFactory func(ctx context.Context, fullName string) (repository.Remote, error)

type releaseCore struct {
	open RemoteFactory
	opts []release.Option
}

// NewCore creates a core running release operations on remotes
func NewCore(open RemoteFactory, opts ...release.Option) Core {
	return &releaseCore{open: open, opts: opts}
}

func (c *releaseCore) HandleMerge(ctx context.Context, repo, branch string, rev repository.Revision) error {
	remote, err := c.open(ctx, repo)
	if err != nil {
		return err
	}
	_, err = release.NewDispatcher(remote, c.opts...).HandleMerge(ctx, branch, rev)
	return err
}

func (c *releaseCore) BuildRelease(ctx context.Context, repo, branch, pkg string, req version.Request) error {
	remote, err := c.open(ctx, repo)
	if err != nil {
		return err
	}
	_, err = release.NewBuilder(remote, c.opts...).BuildOn(ctx, branch, pkg, req)
	return err
}
