package changelog

import (
	"regexp"
	"strings"

	"github.com/blang/semver"
)

var (
	rexDefinition    = regexp.MustCompile(`^\s{0,3}\[([^\]]+)\]:\s*(\S+)\s*$`)
	rexBracketed     = regexp.MustCompile(`^\[([^\]]*)\](?:\s*-\s*(.+))?$`)
	rexParenthesized = regexp.MustCompile(`^\[?([^\]\s]+)\]?\s*\((.+)\)$`)
	rexPlain         = regexp.MustCompile(`^(\S+)(?:\s+-\s+(.+))?$`)
	rexChangeRef     = regexp.MustCompile(`^(.*?)\s*\(\[([^\]]+)\]\(([^)\s]+)\)\)$`)
	rexListItem      = regexp.MustCompile(`^\s{0,3}[-*+]\s+`)
)

type parseState int

const (
	inPreamble parseState = iota
	inRelease
	inSection
)

// parser builds a changelog line by line
type parser struct {
	c     *Changelog
	state parseState
	defs  []Reference

	paragraph []string
	fenced    bool

	// inItem is true while continuation lines belong to the last change
	inItem bool
}

// Parse a changelog. Parsing never fails: unknown constructs are kept as text.
func Parse(text string) *Changelog {
	p := &parser{c: &Changelog{}}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		p.line(line)
	}
	p.flush()
	p.links()

	return p.c
}

// ParseBytes parses a changelog from raw bytes
func ParseBytes(content []byte) *Changelog {
	return Parse(string(content))
}

func (p *parser) release() *Release {
	return &p.c.Releases[len(p.c.Releases)-1]
}

func (p *parser) section() *Section {
	r := p.release()
	return &r.Sections[len(r.Sections)-1]
}

func (p *parser) line(line string) {
	trimmed := strings.TrimSpace(line)

	if p.fenced {
		p.paragraph = append(p.paragraph, strings.TrimRight(line, " \t"))
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			p.fenced = false
		}
		return
	}

	switch {
	case trimmed == "":
		p.flush()
		p.inItem = false

	case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
		p.inItem = false
		p.fenced = true
		p.paragraph = append(p.paragraph, strings.TrimRight(line, " \t"))

	case rexDefinition.MatchString(line):
		p.flush()
		p.inItem = false
		m := rexDefinition.FindStringSubmatch(line)
		p.defs = append(p.defs, Reference{Label: m[1], URL: m[2]})

	case heading(trimmed, 1) && p.state == inPreamble && p.c.Title == "" && p.c.Description == "" && len(p.paragraph) == 0:
		p.c.Title = headingText(trimmed, 1)

	case heading(trimmed, 2):
		p.flush()
		p.inItem = false
		p.c.Releases = append(p.c.Releases, parseReleaseHeading(headingText(trimmed, 2)))
		p.state = inRelease

	case heading(trimmed, 3) && p.state != inPreamble:
		p.flush()
		p.inItem = false
		r := p.release()
		r.Sections = append(r.Sections, Section{Category: ParseCategory(headingText(trimmed, 3))})
		p.state = inSection

	case rexListItem.MatchString(line) && p.state != inPreamble:
		p.flush()
		if p.state == inRelease {
			// changes listed before any category heading
			r := p.release()
			r.Sections = append(r.Sections, Section{})
			p.state = inSection
		}
		s := p.section()
		s.Changes = append(s.Changes, Change{Text: strings.TrimSpace(rexListItem.ReplaceAllString(line, ""))})
		p.inItem = true

	case p.inItem:
		s := p.section()
		last := &s.Changes[len(s.Changes)-1]
		last.Text += " " + trimmed

	default:
		p.paragraph = append(p.paragraph, strings.TrimRight(line, " \t"))
	}
}

func heading(line string, depth int) bool {
	prefix := strings.Repeat("#", depth)
	if !strings.HasPrefix(line, prefix) {
		return false
	}
	rest := line[depth:]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

// headingText is the text following the heading marker, which may be empty
func headingText(line string, depth int) string {
	if len(line) <= depth {
		return ""
	}
	return strings.TrimSpace(line[depth:])
}

// flush the current paragraph into the description it belongs to
func (p *parser) flush() {
	if p.fenced || len(p.paragraph) == 0 {
		return
	}
	text := strings.Join(p.paragraph, "\n")
	p.paragraph = p.paragraph[:0]

	var target *string
	switch p.state {
	case inPreamble:
		target = &p.c.Description
	case inRelease:
		target = &p.release().Description
	case inSection:
		if s := p.section(); s.Category != "" {
			target = &s.Description
		} else {
			target = &p.release().Description
		}
	}
	if *target == "" {
		*target = text
	} else {
		*target += "\n\n" + text
	}
}

// finalize changes and links once all lines are consumed
func (p *parser) links() {
	if p.fenced && len(p.paragraph) > 0 {
		// unterminated code block
		p.fenced = false
		p.flush()
	}

	for i := range p.c.Releases {
		r := &p.c.Releases[i]
		for j := range r.Sections {
			for k := range r.Sections[j].Changes {
				r.Sections[j].Changes[k] = splitReference(r.Sections[j].Changes[k].Text)
			}
		}
	}

	used := make([]bool, len(p.defs))
	for i := range p.c.Releases {
		r := &p.c.Releases[i]
		label := r.Version
		if r.IsUnreleased() {
			label = unreleased
		}
		for j, def := range p.defs {
			if !used[j] && strings.EqualFold(def.Label, label) {
				r.Link = def.URL
				used[j] = true
				break
			}
		}
	}
	for j, def := range p.defs {
		if !used[j] {
			p.c.Links = append(p.c.Links, def)
		}
	}
}

func splitReference(text string) Change {
	m := rexChangeRef.FindStringSubmatch(text)
	if m == nil || m[1] == "" {
		return Change{Text: text}
	}
	return Change{Text: m[1], Label: m[2], Link: m[3]}
}

func parseReleaseHeading(h string) Release {
	var token, date string
	switch {
	case rexBracketed.MatchString(h):
		m := rexBracketed.FindStringSubmatch(h)
		token, date = m[1], m[2]
	case rexParenthesized.MatchString(h):
		m := rexParenthesized.FindStringSubmatch(h)
		token, date = m[1], m[2]
	case rexPlain.MatchString(h):
		m := rexPlain.FindStringSubmatch(h)
		token, date = m[1], m[2]
	case strings.HasPrefix(h, "[") && strings.Contains(h, "]"):
		// bracketed version followed by a date without separator
		end := strings.Index(h, "]")
		token = h[1:end]
		date = strings.TrimPrefix(strings.TrimSpace(h[end+1:]), "-")
	default:
		token = h
	}
	// versions are rendered within brackets
	token = strings.TrimSpace(strings.ReplaceAll(token, "]", ""))
	date = strings.TrimSpace(date)

	if token == "" || strings.EqualFold(token, unreleased) {
		return Release{Date: date}
	}
	if strings.HasPrefix(token, "v") {
		if _, err := semver.Parse(token[1:]); err == nil {
			token = token[1:]
		}
	}
	return Release{Version: token, Date: date}
}
