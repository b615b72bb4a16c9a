// Package version computes semantic version bumps.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/repository/status"
)

// Bump is a semantic version increment
type Bump int

// Supported bumps
const (
	Patch Bump = iota + 1
	Minor
	Major
	RC
	Beta
	Alpha
)

var bumpNames = map[Bump]string{
	Major: "major",
	Minor: "minor",
	Patch: "patch",
	RC:    "rc",
	Beta:  "beta",
	Alpha: "alpha",
}

func (b Bump) String() string {
	if name, ok := bumpNames[b]; ok {
		return name
	}
	return "bump(" + strconv.Itoa(int(b)) + ")"
}

// ParseBump parses a bump name: major, minor, patch, rc, beta or alpha
func ParseBump(s string) (Bump, error) {
	for b, name := range bumpNames {
		if strings.EqualFold(s, name) {
			return b, nil
		}
	}
	return 0, status.ErrInvalidBump.Wrapf("unknown bump %q", s)
}

// Apply a bump to a version.
//
// A patch bump on a prerelease drops the prerelease tag. Prerelease bumps (rc, beta, alpha)
// increment a matching prerelease, or start a new prerelease of the next minor version
// (next major version from 1.0.0 on). Going back from rc to beta or alpha, or from beta
// to alpha, is not supported.
func (b Bump) Apply(v semver.Version) (semver.Version, error) {
	next := semver.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
	switch b {
	case Major:
		next.Major++
		next.Minor, next.Patch = 0, 0
	case Minor:
		next.Minor++
		next.Patch = 0
	case Patch:
		if len(v.Pre) == 0 {
			next.Patch++
		}
	case RC, Beta, Alpha:
		tag, num, ok := prerelease(v)
		switch {
		case ok && tag == b:
			next.Pre = preVersion(b, num+1)
		case ok && tag < b:
			return semver.Version{}, status.ErrInvalidBump.Wrapf("cannot bump %s to %s", v, b)
		case ok:
			next.Pre = preVersion(b, 1)
		default:
			if v.Major == 0 {
				next.Minor++
			} else {
				next.Major++
				next.Minor = 0
			}
			next.Patch = 0
			next.Pre = preVersion(b, 1)
		}
	default:
		return semver.Version{}, status.ErrInvalidBump.Wrapf("unsupported bump %s", b)
	}
	return next, nil
}

// prerelease extracts a known prerelease tag with its number, e.g. rc.2
func prerelease(v semver.Version) (Bump, uint64, bool) {
	if len(v.Pre) == 0 {
		return 0, 0, false
	}
	var tag Bump
	switch v.Pre[0].VersionStr {
	case "rc":
		tag = RC
	case "beta":
		tag = Beta
	case "alpha":
		tag = Alpha
	default:
		return 0, 0, false
	}
	if len(v.Pre) > 1 && v.Pre[1].IsNum {
		return tag, v.Pre[1].VersionNum, true
	}
	return tag, 0, true
}

func preVersion(b Bump, n uint64) []semver.PRVersion {
	return []semver.PRVersion{
		{VersionStr: b.String()},
		{VersionNum: n, IsNum: true},
	}
}

// Request is a requested version change: an explicit bump, an explicit version,
// or a bump inferred from changes when both are empty
type Request struct {
	Bump    Bump
	Version *semver.Version
}

// Inferred tells if the bump is to be inferred from changes
func (r Request) Inferred() bool {
	return r.Bump == 0 && r.Version == nil
}

func (r Request) String() string {
	switch {
	case r.Version != nil:
		return r.Version.String()
	case r.Bump != 0:
		return r.Bump.String()
	default:
		return "auto"
	}
}

// ParseRequest parses a bump name, an explicit version, or "auto" (or an empty string)
func ParseRequest(s string) (Request, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return Request{}, nil
	}
	if b, err := ParseBump(s); err == nil {
		return Request{Bump: b}, nil
	}
	v, err := semver.ParseTolerant(s)
	if err != nil {
		return Request{}, status.ErrInvalidBump.Wrap(fmt.Errorf("%q is neither a bump nor a version: %v", s, err))
	}
	return Request{Version: &v}, nil
}
