package release

import (
	"time"

	"github.com/oneconcern/relman/pkg/version"
	"go.uber.org/zap"
)

// DefaultMaxRetries is the default number of attempts made after a conflicting branch update
const DefaultMaxRetries = 3

type settings struct {
	maxRetries       int
	policy           version.Policy
	now              func() time.Time
	updateDependents bool
	updateLockfile   bool
	updateChangelog  bool
	allowEmpty       bool
	l                *zap.Logger
}

// Option for the release builder and dispatcher
type Option func(*settings)

func defaultSettings() settings {
	return settings{
		maxRetries:       DefaultMaxRetries,
		policy:           version.DefaultPolicy(),
		now:              time.Now,
		updateDependents: true,
		updateLockfile:   true,
		updateChangelog:  true,
		l:                zap.NewNop(),
	}
}

// MaxRetries sets how many times a release branch update is recomputed after a conflict
func MaxRetries(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// Policy to infer version bumps from changes
func Policy(p version.Policy) Option {
	return func(s *settings) {
		s.policy = p
	}
}

// Clock sets the source of release dates
func Clock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// UpdateDependents updates requirements on the released package in other packages
func UpdateDependents(enabled bool) Option {
	return func(s *settings) {
		s.updateDependents = enabled
	}
}

// UpdateLockfile updates the version of the released package in its lockfile
func UpdateLockfile(enabled bool) Option {
	return func(s *settings) {
		s.updateLockfile = enabled
	}
}

// UpdateChangelog moves unreleased changes to a new release in the package changelog
func UpdateChangelog(enabled bool) Option {
	return func(s *settings) {
		s.updateChangelog = enabled
	}
}

// AllowEmpty accepts explicit bumps for packages without unreleased changes
func AllowEmpty(enabled bool) Option {
	return func(s *settings) {
		s.allowEmpty = enabled
	}
}

// Logger for release operations
func Logger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.l = l
		}
	}
}
