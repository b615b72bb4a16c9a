package changelog

import (
	"strings"
)

// String renders the changelog as markdown
func (c *Changelog) String() string {
	var blocks []string
	if c.Title != "" {
		blocks = append(blocks, "# "+c.Title)
	}
	if c.Description != "" {
		blocks = append(blocks, c.Description)
	}
	for _, r := range c.Releases {
		blocks = append(blocks, r.render(true))
	}

	var defs []string
	for _, r := range c.Releases {
		if r.Link == "" {
			continue
		}
		label := r.Version
		if r.IsUnreleased() {
			label = unreleased
		}
		defs = append(defs, "["+label+"]: "+r.Link)
	}
	for _, l := range c.Links {
		defs = append(defs, "["+l.Label+"]: "+l.URL)
	}
	if len(defs) > 0 {
		blocks = append(blocks, strings.Join(defs, "\n"))
	}

	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// Bytes renders the changelog as markdown
func (c *Changelog) Bytes() []byte {
	return []byte(c.String())
}

// Heading of a release
func (r Release) Heading() string {
	label := r.Version
	if r.IsUnreleased() {
		label = unreleased
	}
	if r.Date == "" {
		return "## [" + label + "]"
	}
	return "## [" + label + "] - " + r.Date
}

// String renders a release section, with its heading
func (r Release) String() string {
	return r.render(true) + "\n"
}

// Notes renders a release without its heading, e.g. as release notes
func (r Release) Notes() string {
	return r.render(false) + "\n"
}

func (r Release) render(withHeading bool) string {
	var blocks []string
	if withHeading {
		blocks = append(blocks, r.Heading())
	}
	if r.Description != "" {
		blocks = append(blocks, r.Description)
	}
	for i, s := range r.Sections {
		switch {
		case s.Category != "":
			blocks = append(blocks, "### "+string(s.Category))
		case i > 0 || len(s.Changes) == 0:
			// only leading changes may go without a heading
			blocks = append(blocks, "###")
		}
		if s.Description != "" {
			blocks = append(blocks, s.Description)
		}
		if len(s.Changes) > 0 {
			items := make([]string, 0, len(s.Changes))
			for _, change := range s.Changes {
				items = append(items, change.String())
			}
			blocks = append(blocks, strings.Join(items, "\n"))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// String renders a change as a list item
func (c Change) String() string {
	if c.Link == "" {
		return "- " + c.Text
	}
	label := c.Label
	if label == "" {
		label = c.Link
	}
	return "- " + c.Text + " ([" + label + "](" + c.Link + "))"
}
