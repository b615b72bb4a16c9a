package version

import (
	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/changelog"
	"github.com/oneconcern/relman/pkg/repository/status"
)

// Policy maps changelog categories to version bumps
type Policy struct {
	// Bumps per category. Categories not listed get the Default bump.
	Bumps   map[changelog.Category]Bump
	Default Bump

	// StableMajorOnly turns an inferred major bump into a minor bump before 1.0.0
	StableMajorOnly bool
}

// DefaultPolicy bumps the major version for removals and security fixes, the minor
// version for additions and the patch version otherwise
func DefaultPolicy() Policy {
	return Policy{
		Bumps: map[changelog.Category]Bump{
			changelog.Removed:  Major,
			changelog.Security: Major,
			changelog.Added:    Minor,
			changelog.Fixed:    Patch,
			changelog.Changed:  Patch,
		},
		Default:         Patch,
		StableMajorOnly: true,
	}
}

// Infer the bump for a set of categories: the highest bump wins
func (p Policy) Infer(categories []changelog.Category) Bump {
	var inferred Bump
	for _, c := range categories {
		b, ok := p.Bumps[c]
		if !ok {
			b = p.Default
		}
		if b > inferred && b <= Major {
			inferred = b
		}
	}
	if inferred == 0 {
		inferred = Patch
	}
	return inferred
}

// Next computes the next version from the current one.
//
// Explicit versions must be greater than the current version. Inferred bumps
// require at least one category.
func Next(current semver.Version, req Request, categories []changelog.Category, policy Policy) (semver.Version, error) {
	switch {
	case req.Version != nil:
		if !req.Version.GT(current) {
			return semver.Version{}, status.ErrInvalidBump.Wrapf("version %s does not follow %s", req.Version, current)
		}
		return *req.Version, nil

	case req.Bump != 0:
		return req.Bump.Apply(current)

	default:
		if len(categories) == 0 {
			return semver.Version{}, status.ErrNothingToRelease.Wrapf("no changes to infer a bump from %s", current)
		}
		b := policy.Infer(categories)
		if b == Major && current.Major == 0 && policy.StableMajorOnly {
			b = Minor
		}
		return b.Apply(current)
	}
}
