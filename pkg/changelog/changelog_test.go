package changelog

import (
	"strings"
	"testing"
	"time"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# Changelog

All notable changes to this project will be documented in this file.

The format is based on [Keep a Changelog](https://keepachangelog.com/en/1.1.0/),
and this project adheres to [Semantic Versioning](https://semver.org/spec/v2.0.0.html).

## [Unreleased]

### Fixed

- Fixed a crash when the
  manifest is empty ([#9](https://github.com/example/repo/pull/9))

## [0.2.0] - 2024-01-04

### Added

- Added three ([#3](https://github.com/example/repo/pull/3))

### Removed

- Removed four ([#4](https://github.com/example/repo/pull/4))

### Changed

- Changed six ([#6](https://github.com/example/repo/pull/6))
- Changed ` + "`eight`" + `

## [0.1.2] - 2024-01-03

### Fixed

This changeset has a description.

- Fixed two ([#2](https://github.com/example/repo/pull/2))

## [0.1.0] - 2024-01-01

This is the initial release.

[unreleased]: https://github.com/example/repo/compare/0.2.0...HEAD
[0.2.0]: https://github.com/example/repo/releases/tag/0.2.0
[0.1.0]: https://github.com/example/repo/releases/tag/0.1.0
[docs]: https://example.com/docs
`

func TestParse(t *testing.T) {
	c := Parse(sample)

	assert.Equal(t, "Changelog", c.Title)
	assert.True(t, strings.HasPrefix(c.Description, "All notable changes"))
	assert.Contains(t, c.Description, "\n\nThe format is based on")
	require.Len(t, c.Releases, 4)

	u := c.Unreleased()
	require.NotNil(t, u)
	assert.Equal(t, "https://github.com/example/repo/compare/0.2.0...HEAD", u.Link)
	require.Len(t, u.Sections, 1)
	assert.Equal(t, Fixed, u.Sections[0].Category)
	assert.Equal(t, []Change{{
		Text:  "Fixed a crash when the manifest is empty",
		Label: "#9",
		Link:  "https://github.com/example/repo/pull/9",
	}}, u.Sections[0].Changes)

	r := c.Find("0.2.0")
	require.NotNil(t, r)
	assert.Equal(t, "2024-01-04", r.Date)
	assert.Equal(t, "https://github.com/example/repo/releases/tag/0.2.0", r.Link)
	assert.Equal(t, []Category{Added, Removed, Changed}, r.Categories())
	changed := r.Section(Changed)
	require.NotNil(t, changed)
	assert.Equal(t, Change{Text: "Changed `eight`"}, changed.Changes[1])

	r = c.Find("v0.1.2")
	require.NotNil(t, r)
	assert.Empty(t, r.Link)
	assert.Equal(t, "This changeset has a description.", r.Section(Fixed).Description)

	r = c.Find("0.1.0")
	require.NotNil(t, r)
	assert.Equal(t, "This is the initial release.", r.Description)
	assert.True(t, r.Empty())

	assert.Nil(t, c.Find("9.9.9"))
	assert.Equal(t, []Reference{{Label: "docs", URL: "https://example.com/docs"}}, c.Links)
	assert.Equal(t, "0.2.0", c.Latest().Version)
	require.NoError(t, c.Validate())
}

func TestParseEmpty(t *testing.T) {
	c := Parse("")
	assert.Empty(t, c.Releases)
	assert.NotContains(t, c.String(), "## ")
	assert.NotContains(t, (&Changelog{}).String(), "## ")
	assert.Nil(t, c.Unreleased())
	assert.Nil(t, c.Latest())

	c = Parse("# Changelog\n\nNothing yet.\n")
	assert.Empty(t, c.Releases)
	assert.Equal(t, "Nothing yet.", c.Description)
}

func TestParseHeadings(t *testing.T) {
	tests := []struct {
		name    string
		heading string
		version string
		date    string
	}{
		{name: "bracketed", heading: "## [1.0.0] - 2024-01-01", version: "1.0.0", date: "2024-01-01"},
		{name: "bracketed without date", heading: "## [1.0.0]", version: "1.0.0"},
		{name: "plain", heading: "## 1.0.0 - 2024-01-01", version: "1.0.0", date: "2024-01-01"},
		{name: "v prefix", heading: "## v1.0.0", version: "1.0.0"},
		{name: "date in parentheses", heading: "## 1.0.0 (2024-01-01)", version: "1.0.0", date: "2024-01-01"},
		{name: "unreleased", heading: "## Unreleased", version: ""},
		{name: "unreleased bracketed", heading: "## [unreleased]", version: ""},
		{name: "not a version", heading: "## Upcoming notes", version: "Upcoming notes"},
		{name: "bracketed with bare date", heading: "## [1.0.0] 2020-01-01", version: "1.0.0", date: "2020-01-01"},
		{name: "bracketed with dangling dash", heading: "## [1.0.0] -", version: "1.0.0"},
		{name: "stray bracket", heading: "## a]b", version: "ab"},
		{name: "prerelease", heading: "## [2.0.0-rc.1] - 2024-02-01", version: "2.0.0-rc.1", date: "2024-02-01"},
	}
	for _, tts := range tests {
		tt := tts
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Parse(tt.heading + "\n")
			require.Len(t, c.Releases, 1)
			assert.Equal(t, tt.version, c.Releases[0].Version)
			assert.Equal(t, tt.date, c.Releases[0].Date)
		})
	}
}

const oddities = `Some preamble without a title.

## 1.1.0

- change listed without a category
* another one

Trailing notes.

### Internal

- refactored things

#### Not a category

` + "```" + `
## not a release

- not a change
` + "```" + `
`

func TestParseOddities(t *testing.T) {
	c := Parse(oddities)
	assert.Empty(t, c.Title)
	assert.Equal(t, "Some preamble without a title.", c.Description)
	require.Len(t, c.Releases, 1)

	r := c.Releases[0]
	assert.Equal(t, "Trailing notes.", r.Description)
	require.Len(t, r.Sections, 2)
	assert.Equal(t, Category(""), r.Sections[0].Category)
	assert.Len(t, r.Sections[0].Changes, 2)
	assert.Equal(t, Category("Internal"), r.Sections[1].Category)
	assert.False(t, r.Sections[1].Category.Known())
	assert.Contains(t, r.Sections[1].Description, "#### Not a category")
	assert.Contains(t, r.Sections[1].Description, "## not a release")

	require.NotPanics(t, func() {
		c = Parse("#\n\n## [1.0.0] - 2020-01-01\n### Added\n- a\n")
	})
	assert.Empty(t, c.Title)
	require.Len(t, c.Releases, 1)
	assert.Equal(t, "1.0.0", c.Releases[0].Version)

	require.NotPanics(t, func() {
		c = Parse("#\n##\n###\n- a\n")
	})
	require.Len(t, c.Releases, 1)
	assert.True(t, c.Releases[0].IsUnreleased())
	require.Len(t, c.Releases[0].Sections, 1)
	assert.Equal(t, Category(""), c.Releases[0].Sections[0].Category)

	c = Parse("## [1.0.0]\n- x\n### \n- a\n")
	require.Len(t, c.Releases[0].Sections, 2)
	assert.Equal(t, []Change{{Text: "x"}}, c.Releases[0].Sections[0].Changes)
	assert.Equal(t, []Change{{Text: "a"}}, c.Releases[0].Sections[1].Changes)
}

func TestRoundTrip(t *testing.T) {
	docs := map[string]string{
		"sample":          sample,
		"empty":           "",
		"new":             New().String(),
		"unreleased only": "## [Unreleased]\n\n### Added\n\n- something\n",
		"windows":         "# Changelog\r\n\r\n## [1.0.0] - 2024-01-01\r\n\r\n### Fixed\r\n\r\n- a fix\r\n",
		"no title":        "Intro.\n\n## 1.0.0 (2024-01-01)\n\n- uncategorized\n\nNotes.\n\n### Security\n\n- patched\n",
		"fenced":          "## [1.0.0]\n\n### Changed\n\n```\n- literal\n\n## literal\n```\n\n- real change\n",
		"unknown":         "## [1.0.0]\n\n### Performance\n\nFaster.\n\n- faster parser\n\n[1.0.0]: https://example.com/1.0.0\n[other]: https://example.com\n",
		"oddities":        oddities,
		"bare title":      "#\n\n## [1.0.0] - 2020-01-01\n### Added\n- a\n",
		"bare headings":   "#\n##\n###\n- a\n",
		"undashed date":   "## [1.0.0] 2020-01-01\n### Added\n- a\n",
		"stray brackets":  "## a]b\n\n## [x]y] z\n\n## [1.0.0] -\n",
		"empty category":  "## [1.0.0]\n- x\n### \n- a\n",
		"empty after":     "## [1.0.0]\n### Added\n- a\n###\nLoose text.\n- b\n",
		"empty leading":   "## [1.0.0]\n###\n### Fixed\n- f\n",
	}
	for name, doc := range docs {
		text := doc
		t.Run(name, func(t *testing.T) {
			first := Parse(text)
			rendered := first.String()
			second := Parse(rendered)
			assert.Equal(t, first, second)
			assert.Equal(t, rendered, second.String(), "rendering is stable")
		})
	}
}

func TestNew(t *testing.T) {
	c := New()
	rendered := c.String()
	assert.True(t, strings.HasPrefix(rendered, "# Changelog\n\nAll notable changes to this package"))
	assert.Contains(t, rendered, "[Keep a Changelog](https://keepachangelog.com/en/1.1.0/)")
	assert.Empty(t, c.Releases)
}

func TestAddRelease(t *testing.T) {
	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("generates a release", func(t *testing.T) {
		c := Parse("# Changelog\n\n## [Unreleased]\n\n### Added\n\n- X\n\n## [1.0.0] - 2024-01-01\n\n- initial\n")
		r, err := c.AddRelease(semver.MustParse("1.1.0"), []Entry{{Category: Added, Text: "X"}}, date)
		require.NoError(t, err)

		assert.Equal(t, "1.1.0", r.Version)
		assert.Equal(t, "2024-03-01", r.Date)
		require.Len(t, r.Sections, 1)
		assert.Equal(t, Added, r.Sections[0].Category)
		assert.Equal(t, []Change{{Text: "X"}}, r.Sections[0].Changes)

		require.Len(t, c.Releases, 2)
		assert.Nil(t, c.Unreleased())
		rendered := c.String()
		assert.NotContains(t, rendered, "Unreleased")
		assert.Contains(t, rendered, "## [1.1.0] - 2024-03-01\n\n### Added\n\n- X\n\n## [1.0.0] - 2024-01-01")
		require.NoError(t, Parse(rendered).Validate())
	})

	t.Run("orders categories", func(t *testing.T) {
		c := New()
		r, err := c.AddRelease(semver.MustParse("0.1.0"), []Entry{
			{Category: Fixed, Text: "fix 1", Link: "https://github.com/o/r/pull/12"},
			{Category: "Docs", Text: "docs"},
			{Category: "added", Text: "feature\n  on two lines"},
			{Category: Fixed, Text: "fix 2", Link: "https://example.com/x"},
			{Category: Security, Text: "  "},
		}, time.Time{})
		require.NoError(t, err)

		assert.Empty(t, r.Date)
		require.Len(t, r.Sections, 3)
		assert.Equal(t, []Category{Added, Fixed, "Docs"}, r.Categories())
		assert.Equal(t, "feature on two lines", r.Sections[0].Changes[0].Text)
		assert.Equal(t, Change{Text: "fix 1", Label: "#12", Link: "https://github.com/o/r/pull/12"}, r.Sections[1].Changes[0])
		assert.Equal(t, "https://example.com/x", r.Sections[1].Changes[1].Label)

		reparsed := Parse(c.String())
		assert.Equal(t, c.Releases, reparsed.Releases)
	})

	t.Run("rejects older versions", func(t *testing.T) {
		c := Parse("## [1.0.0]\n")
		_, err := c.AddRelease(semver.MustParse("1.0.0"), []Entry{{Category: Added, Text: "X"}}, date)
		assert.True(t, errors.Is(err, ErrVersionOrder))
		_, err = c.AddRelease(semver.MustParse("0.9.0"), []Entry{{Category: Added, Text: "X"}}, date)
		assert.True(t, errors.Is(err, ErrVersionOrder))
	})
}

func TestValidate(t *testing.T) {
	assert.True(t, errors.Is(Parse("## [1.0.0]\n\n## [1.1.0]\n").Validate(), ErrVersionOrder))
	assert.True(t, errors.Is(Parse("## [1.0.0]\n\n## [Unreleased]\n").Validate(), ErrVersionOrder))
	assert.True(t, errors.Is(Parse("## [next]\n").Validate(), ErrVersionOrder))
	assert.NoError(t, Parse("## [Unreleased]\n\n## [1.1.0]\n\n## [1.0.0]\n").Validate())
}

func TestReleaseNotes(t *testing.T) {
	c := Parse(sample)
	r := c.Find("0.1.2")
	require.NotNil(t, r)
	assert.Equal(t, "### Fixed\n\nThis changeset has a description.\n\n- Fixed two ([#2](https://github.com/example/repo/pull/2))\n", r.Notes())
	assert.True(t, strings.HasPrefix(r.String(), "## [0.1.2] - 2024-01-03\n"))
	assert.Equal(t, []Entry{{Category: Fixed, Text: "Fixed two", Label: "#2", Link: "https://github.com/example/repo/pull/2"}}, r.Entries())
}
