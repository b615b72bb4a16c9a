package release

import (
	"fmt"
	"strings"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/project"
)

// BranchPrefix of release branches
const BranchPrefix = "release/"

// Dispatch event types
const (
	EventReleased       = "package-released"
	EventReleaseRequest = "package-release-request"
)

// isPrimary tells if a package is the primary package of a project: the package named
// after the project, or the root package when the project is not named.
func isPrimary(cfg project.Config, pkg *project.Package) bool {
	if cfg.Project.Name != "" {
		return pkg.Name() == cfg.Project.Name
	}
	return pkg.Dir() == "."
}

// BranchName for the release of a package
func BranchName(name string, v semver.Version, primary bool) string {
	if primary {
		return BranchPrefix + v.String()
	}
	return BranchPrefix + name + "-" + v.String()
}

// Title of the release request for a package
func Title(name string, v semver.Version, primary bool) string {
	if primary {
		return fmt.Sprintf("Release `%s`", v)
	}
	return fmt.Sprintf("Release `%s@%s`", name, v)
}

// TagName for the release of a package
func TagName(name string, v semver.Version, primary bool) string {
	if primary {
		return v.String()
	}
	return name + "-" + v.String()
}

func releaseName(name string, v semver.Version, primary bool) string {
	if primary {
		return v.String()
	}
	return name + " " + v.String()
}

func description(name string, v semver.Version) string {
	return fmt.Sprintf("Releasing package `%s` version `%s`.", name, v)
}

// matchBranch tells if a release branch, without its prefix, designates a package at its current version
func matchBranch(release string, pkg *project.Package, primary bool) bool {
	if primary {
		if v, err := semver.Parse(release); err == nil && v.EQ(pkg.Version()) {
			return true
		}
	}
	rest := strings.TrimPrefix(release, pkg.Name()+"-")
	if rest == release {
		return false
	}
	v, err := semver.Parse(rest)
	return err == nil && v.EQ(pkg.Version())
}
