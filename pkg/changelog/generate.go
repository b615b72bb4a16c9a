package changelog

import (
	"regexp"
	"strings"
	"time"

	"github.com/blang/semver"
)

// DateFormat is the format of release dates
const DateFormat = "2006-01-02"

var rexIssueLink = regexp.MustCompile(`/(?:pull|issues)/(\d+)/?$`)

// Entry is a change to add to a new release
type Entry struct {
	Category Category
	Text     string

	// Link is an optional reference for this change, e.g. a pull request URL
	Link string

	// Label of the link. When empty, it is derived from the link.
	Label string
}

func (e Entry) change() Change {
	c := Change{Text: strings.Join(strings.Fields(e.Text), " "), Link: e.Link, Label: e.Label}
	if c.Link != "" && c.Label == "" {
		if m := rexIssueLink.FindStringSubmatch(c.Link); m != nil {
			c.Label = "#" + m[1]
		} else {
			c.Label = c.Link
		}
	}
	return c
}

// NewRelease builds a release from a list of entries.
//
// Sections follow the canonical category order, followed by other categories in order
// of first appearance. Entries keep their order within a category. Categories without
// entries are omitted.
func NewRelease(version semver.Version, entries []Entry, date time.Time) Release {
	r := Release{Version: version.String()}
	if !date.IsZero() {
		r.Date = date.Format(DateFormat)
	}

	order := Categories()
	byCategory := make(map[Category][]Change)
	for _, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		c := ParseCategory(string(e.Category))
		if c == "" {
			c = Changed
		}
		if _, seen := byCategory[c]; !seen && !c.Known() {
			order = append(order, c)
		}
		byCategory[c] = append(byCategory[c], e.change())
	}
	for _, c := range order {
		if changes := byCategory[c]; len(changes) > 0 {
			r.Sections = append(r.Sections, Section{Category: c, Changes: changes})
		}
	}
	return r
}

// AddRelease inserts a new release at the front of the changelog, replacing unreleased changes.
//
// The version must be greater than the latest released version.
func (c *Changelog) AddRelease(version semver.Version, entries []Entry, date time.Time) (*Release, error) {
	if latest := c.Latest(); latest != nil {
		if v, err := latest.SemVer(); err == nil && !version.GT(v) {
			return nil, ErrVersionOrder.Wrapf("cannot add release %s after %s", version, v)
		}
	}

	r := NewRelease(version, entries, date)
	releases := make([]Release, 0, len(c.Releases)+1)
	releases = append(releases, r)
	for _, existing := range c.Releases {
		if existing.IsUnreleased() {
			continue
		}
		releases = append(releases, existing)
	}
	c.Releases = releases

	return &c.Releases[0], nil
}
