package cmd

import (
	"context"
	"strings"

	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/spf13/cobra"
)

var packageChangelog = &cobra.Command{
	Use:   "changelog <package>",
	Short: "Print the changes of a package",
	Long:  `Prints the unreleased changes of a package, or the release notes of a version with --version.`,
	Example: `% relman package changelog core --version 0.1.0
### Added

- First release`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		notes, err := changelogNotes(context.Background(), args[0], params.pkg.version)
		if err != nil {
			wrapFatalln("read changelog", err)
			return
		}
		if notes == "" {
			logStdOut("%s", faint("no unreleased changes"))
			return
		}
		logStdOut("%s", notes)
	},
}

func changelogNotes(ctx context.Context, name, version string) (string, error) {
	proj, err := openProject(ctx)
	if err != nil {
		return "", err
	}
	pkg, err := findPackage(ctx, proj, name)
	if err != nil {
		return "", err
	}
	cl, exists, err := pkg.Changelog(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", status.ErrNotFound.Wrapf("%s has no changelog", name)
	}

	if version == "" {
		unreleased := cl.Unreleased()
		if unreleased == nil || unreleased.Empty() {
			return "", nil
		}
		return strings.TrimSpace(unreleased.Notes()), nil
	}
	release := cl.Find(version)
	if release == nil {
		return "", status.ErrNotFound.Wrapf("%s has no release %s", name, version)
	}
	return strings.TrimSpace(release.Notes()), nil
}

func init() {
	addVersionFlag(packageChangelog, "The released version to print")
	packageCmd.AddCommand(packageChangelog)
}
