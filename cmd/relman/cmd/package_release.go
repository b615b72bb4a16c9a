package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/oneconcern/relman/pkg/manifest"
	"github.com/oneconcern/relman/pkg/project"
	"github.com/oneconcern/relman/pkg/release"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/memory"
	"github.com/oneconcern/relman/pkg/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const dryRunBranch = "main"

var packageRelease = &cobra.Command{
	Use:   "release <package>",
	Short: "Prepare the release of a package",
	Long: `Prepares the release of a package: bumps its version, updates dependent packages and lockfiles,
moves unreleased changes to a new release in the changelog and opens a release pull request.

The next version is inferred from the categories of unreleased changes unless --bump is given.
With --dispatch, the release is requested from the relman service instead.`,
	Example: `% relman package release core --backend github --repo acme/tools --bump minor
opened release request #42 for core 0.2.0 on branch release/0.2.0`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		name := args[0]
		req, err := version.ParseRequest(params.release.bump)
		if err != nil {
			wrapFatalln("parse version bump", err)
			return
		}
		opts, err := releaseOptions()
		if err != nil {
			wrapFatalln("release settings", err)
			return
		}

		switch {
		case params.release.dispatch:
			remote, err := openRemote()
			if err != nil {
				wrapFatalln("open remote", err)
				return
			}
			id, err := release.NewDispatcher(remote, opts...).RequestRelease(ctx, name, req, params.release.base)
			if err != nil {
				wrapFatalln("request release", err)
				return
			}
			logStdOut("%s release of %s (%s), event %s", success("requested"), name, req, id)

		case params.release.dryRun:
			sandbox, err := dryRunRemote(ctx)
			if err != nil {
				wrapFatalln("load repository", err)
				return
			}
			built, err := release.NewBuilder(sandbox, opts...).Build(ctx, name, req)
			if err != nil {
				wrapFatalln("prepare release", err)
				return
			}
			logStdOut("%s", describeDryRun(built))

		default:
			remote, err := openRemote()
			if err != nil {
				wrapFatalln("open remote", err)
				return
			}
			built, err := release.NewBuilder(remote, opts...).BuildOn(ctx, params.release.base, name, req)
			if err != nil {
				wrapFatalln("prepare release", err)
				return
			}
			verb := "opened"
			if built.Resumed {
				verb = "updated"
			}
			logStdOut("%s release request #%d for %s %s on branch %s",
				success(verb), built.ID, built.Package, built.Version, built.Branch)
		}
	},
}

func releaseOptions() ([]release.Option, error) {
	opts, err := settings.ReleaseOptions()
	if err != nil {
		return nil, err
	}
	return append(opts,
		release.Logger(logger()),
		release.AllowEmpty(params.release.allowEmpty),
	), nil
}

// dryRunRemote copies the files relevant to releases into an in-memory repository
func dryRunRemote(ctx context.Context) (*memory.Repository, error) {
	backend, err := openBackend()
	if err != nil {
		return nil, err
	}
	ref := repository.Revision(params.backend.ref)
	if ref.IsZero() {
		ref = repository.Head
	}
	rev, err := backend.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	patterns := []string{project.ConfigPath, "**/" + project.ChangelogName}
	for _, kind := range manifest.Kinds() {
		patterns = append(patterns, kind.Pattern(), "**/"+kind.LockfileName())
	}
	files := make(map[string]string)
	for _, pattern := range patterns {
		err := backend.ListFiles(ctx, pattern, rev, func(pth string) error {
			if _, done := files[pth]; done {
				return nil
			}
			content, err := backend.ReadFile(ctx, pth, rev)
			if err != nil {
				return err
			}
			files[pth] = string(content)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	logger().Debug("dry run repository loaded", zap.Int("files", len(files)), zap.Stringer("revision", rev))

	branch := dryRunBranch
	if params.release.base != "" {
		branch = params.release.base
	}
	return memory.New(files, memory.Name(backend.String()+" (dry run)"), memory.DefaultBranch(branch)), nil
}

func describeDryRun(built *release.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", success("would open"), built.Title)
	fmt.Fprintf(&b, "branch: %s\n", built.Branch)
	fmt.Fprintln(&b, "files:")
	for _, pth := range built.Bundle.Paths() {
		fmt.Fprintf(&b, "  %s\n", pth)
	}
	fmt.Fprintf(&b, "\n%s", strings.TrimSpace(built.Body))
	return b.String()
}

func init() {
	addBumpFlag(packageRelease)
	addBaseFlag(packageRelease)
	addDryRunFlag(packageRelease)
	addDispatchFlag(packageRelease)
	addAllowEmptyFlag(packageRelease)
	packageCmd.AddCommand(packageRelease)
}
