// Package changelog parses, renders and generates changelogs in the Keep a Changelog format.
//
// See https://keepachangelog.com/en/1.1.0/
package changelog

import (
	"fmt"
	"strings"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/errors"
)

// ErrVersionOrder indicates that release versions do not strictly decrease
var ErrVersionOrder = errors.New("release versions must strictly decrease")

const (
	// DefaultTitle of a new changelog
	DefaultTitle = "Changelog"

	// DefaultDescription of a new changelog
	DefaultDescription = "All notable changes to this package will be documented in this file.\n\n" +
		"The format is based on [Keep a Changelog](https://keepachangelog.com/en/1.1.0/),\n" +
		"and this project adheres to [Semantic Versioning](https://semver.org/spec/v2.0.0.html)."

	unreleased = "Unreleased"
)

// Category of a change
type Category string

// Categories defined by Keep a Changelog
const (
	Added      Category = "Added"
	Changed    Category = "Changed"
	Deprecated Category = "Deprecated"
	Removed    Category = "Removed"
	Fixed      Category = "Fixed"
	Security   Category = "Security"
)

// Categories returns the well-known categories, in canonical order
func Categories() []Category {
	return []Category{Added, Changed, Deprecated, Removed, Fixed, Security}
}

// ParseCategory recognizes well-known categories regardless of case.
// Other headings are kept verbatim.
func ParseCategory(heading string) Category {
	heading = strings.TrimSpace(heading)
	for _, c := range Categories() {
		if strings.EqualFold(heading, string(c)) {
			return c
		}
	}
	return Category(heading)
}

// Known tells if this is one of the Keep a Changelog categories
func (c Category) Known() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// Reference is a link definition
type Reference struct {
	Label string
	URL   string
}

// Change is a single changelog entry
type Change struct {
	Text  string
	Label string
	Link  string
}

// Section groups the changes of a release by category
type Section struct {
	Category    Category
	Description string
	Changes     []Change
}

// Release is a versioned (or unreleased) set of changes
type Release struct {
	// Version is empty for unreleased changes
	Version     string
	Date        string
	Link        string
	Description string
	Sections    []Section
}

// IsUnreleased tells if this release holds unreleased changes
func (r Release) IsUnreleased() bool {
	return r.Version == ""
}

// SemVer parses the version of this release
func (r Release) SemVer() (semver.Version, error) {
	if r.IsUnreleased() {
		return semver.Version{}, fmt.Errorf("unreleased changes have no version")
	}
	return semver.ParseTolerant(r.Version)
}

// Section returns the section for a category, if any
func (r *Release) Section(c Category) *Section {
	for i := range r.Sections {
		if r.Sections[i].Category == c {
			return &r.Sections[i]
		}
	}
	return nil
}

// Categories of all sections with some changes
func (r Release) Categories() []Category {
	categories := make([]Category, 0, len(r.Sections))
	for _, s := range r.Sections {
		if len(s.Changes) > 0 {
			categories = append(categories, s.Category)
		}
	}
	return categories
}

// Entries flattens all changes of this release
func (r Release) Entries() []Entry {
	var entries []Entry
	for _, s := range r.Sections {
		for _, c := range s.Changes {
			entries = append(entries, Entry{Category: s.Category, Text: c.Text, Label: c.Label, Link: c.Link})
		}
	}
	return entries
}

// Empty tells if this release has no changes
func (r Release) Empty() bool {
	for _, s := range r.Sections {
		if len(s.Changes) > 0 {
			return false
		}
	}
	return true
}

// Changelog is a parsed changelog document
type Changelog struct {
	Title       string
	Description string

	// Releases, most recent first
	Releases []Release

	// Links are the link definitions which are not release links
	Links []Reference
}

// New changelog, with a default title and description
func New() *Changelog {
	return &Changelog{
		Title:       DefaultTitle,
		Description: DefaultDescription,
	}
}

// Unreleased returns the unreleased changes, if any
func (c *Changelog) Unreleased() *Release {
	for i := range c.Releases {
		if c.Releases[i].IsUnreleased() {
			return &c.Releases[i]
		}
	}
	return nil
}

// Find a release by version
func (c *Changelog) Find(version string) *Release {
	for i := range c.Releases {
		if c.Releases[i].IsUnreleased() {
			continue
		}
		if c.Releases[i].Version == version {
			return &c.Releases[i]
		}
		v, err := c.Releases[i].SemVer()
		if err != nil {
			continue
		}
		if w, err := semver.ParseTolerant(version); err == nil && v.EQ(w) {
			return &c.Releases[i]
		}
	}
	return nil
}

// Latest returns the most recent versioned release, if any
func (c *Changelog) Latest() *Release {
	for i := range c.Releases {
		if !c.Releases[i].IsUnreleased() {
			return &c.Releases[i]
		}
	}
	return nil
}

// Validate checks that release versions are valid and strictly decrease,
// with unreleased changes only allowed as the first entry
func (c *Changelog) Validate() error {
	var previous *semver.Version
	for i, r := range c.Releases {
		if r.IsUnreleased() {
			if i > 0 {
				return ErrVersionOrder.Wrapf("unreleased changes at position %d", i)
			}
			continue
		}
		v, err := r.SemVer()
		if err != nil {
			return ErrVersionOrder.Wrapf("release %q: %v", r.Version, err)
		}
		if previous != nil && !v.LT(*previous) {
			return ErrVersionOrder.Wrapf("release %s follows %s", v, previous)
		}
		previous = &v
	}
	return nil
}
