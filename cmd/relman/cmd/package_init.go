package cmd

import (
	"context"
	"path"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/changelog"
	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/manifest"
	"github.com/oneconcern/relman/pkg/project"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/spf13/cobra"
)

const initialVersion = "0.1.0"

var packageInit = &cobra.Command{
	Use:   "init",
	Short: "Create a new package",
	Long: `Creates a manifest and an empty changelog for a new package, in the local directory of a repository.

An existing changelog is left untouched. The command fails if the manifest already exists.`,
	Example: `% relman package init --dir . --path crates/util --kind cargo --name util --description "Utilities"
created crates/util/Cargo.toml
created crates/util/CHANGELOG.md`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		bundle, err := newPackageBundle(ctx)
		if err != nil {
			wrapFatalln("create package", err)
			return
		}
		if err := localSnapshot().Apply(ctx, bundle); err != nil {
			wrapFatalln("write package", err)
			return
		}
		for _, pth := range bundle.Paths() {
			logStdOut("%s %s", success("created"), pth)
		}
	},
}

func newPackageBundle(ctx context.Context) (repository.EditBundle, error) {
	var bundle repository.EditBundle
	if params.pkg.name == "" {
		return bundle, errors.New("a package name is required (--name)")
	}
	kind, err := manifest.ParseKind(params.pkg.kind)
	if err != nil {
		return bundle, err
	}
	v := semver.MustParse(initialVersion)
	if params.pkg.version != "" {
		if v, err = semver.ParseTolerant(params.pkg.version); err != nil {
			return bundle, status.ErrInvalidBump.Wrap(err)
		}
	}

	dir := path.Clean(params.pkg.path)
	manifestPath := path.Join(dir, kind.FileName())
	changelogPath := path.Join(dir, project.ChangelogName)

	snapshot := localSnapshot()
	exists, err := fileExists(ctx, snapshot, manifestPath)
	if err != nil {
		return bundle, err
	}
	if exists {
		return bundle, status.ErrConflict.Wrapf("%s already exists", manifestPath)
	}
	content, err := manifest.New(kind, params.pkg.name, params.pkg.description, v)
	if err != nil {
		return bundle, err
	}
	bundle.Message = "Create package " + params.pkg.name
	bundle.Edits = append(bundle.Edits, repository.Edit{Path: manifestPath, Content: content})

	exists, err = fileExists(ctx, snapshot, changelogPath)
	if err != nil {
		return bundle, err
	}
	if !exists {
		bundle.Edits = append(bundle.Edits, repository.Edit{Path: changelogPath, Content: changelog.New().Bytes()})
	}
	return bundle, nil
}

func fileExists(ctx context.Context, backend repository.Backend, pth string) (bool, error) {
	_, err := backend.ReadFile(ctx, pth, repository.WorkTree)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, status.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func init() {
	addKindFlag(packageInit)
	addPackageNameFlag(packageInit)
	addDescriptionFlag(packageInit)
	addPathFlag(packageInit)
	addVersionFlag(packageInit, "The initial version of the package")
	packageCmd.AddCommand(packageInit)
}
