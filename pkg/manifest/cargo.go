package manifest

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/repository/status"
	toml "github.com/pelletier/go-toml"
)

var cargoDependencyTables = []struct {
	table string
	kind  DependencyKind
}{
	{table: "dependencies", kind: Normal},
	{table: "dev-dependencies", kind: Development},
	{table: "build-dependencies", kind: Build},
}

type cargoManifest struct {
	content []byte
	tree    *toml.Tree
}

func parseCargo(content []byte) (*cargoManifest, error) {
	tree, err := toml.LoadBytes(content)
	if err != nil {
		return nil, status.ErrParse.Wrap(err)
	}
	m := &cargoManifest{content: content, tree: tree}
	if m.IsPackage() {
		if _, ok := tree.GetPath([]string{"package", "name"}).(string); !ok {
			return nil, status.ErrParse.Wrapf("missing package name")
		}
		if v, ok := tree.GetPath([]string{"package", "version"}).(string); ok {
			if _, err := semver.Parse(v); err != nil {
				return nil, status.ErrParse.Wrap(err)
			}
		}
	}
	return m, nil
}

func (m *cargoManifest) Kind() Kind {
	return Cargo
}

func (m *cargoManifest) IsPackage() bool {
	return m.tree.Has("package")
}

func (m *cargoManifest) Name() string {
	name, _ := m.tree.GetPath([]string{"package", "name"}).(string)
	return name
}

func (m *cargoManifest) Description() string {
	description, _ := m.tree.GetPath([]string{"package", "description"}).(string)
	return description
}

func (m *cargoManifest) Version() semver.Version {
	if s, ok := m.tree.GetPath([]string{"package", "version"}).(string); ok {
		if v, err := semver.Parse(s); err == nil {
			return v
		}
	}
	return semver.Version{}
}

// inheritsVersion tells if the version is declared as version.workspace = true
func (m *cargoManifest) inheritsVersion() bool {
	inherited, _ := m.tree.GetPath([]string{"package", "version", "workspace"}).(bool)
	return inherited
}

func (m *cargoManifest) Bytes() []byte {
	return m.content
}

func (m *cargoManifest) Dependencies() []Dependency {
	var deps []Dependency
	for _, section := range cargoDependencyTables {
		table, ok := m.tree.Get(section.table).(*toml.Tree)
		if !ok {
			continue
		}
		for _, name := range table.Keys() {
			dep := Dependency{Name: name, Kind: section.kind}
			switch value := table.GetPath([]string{name}).(type) {
			case string:
				dep.Requirement = value
			case *toml.Tree:
				dep.Requirement, _ = value.Get("version").(string)
				dep.Path, _ = value.Get("path").(string)
				if pkg, ok := value.Get("package").(string); ok {
					dep.Name = pkg
				}
			}
			deps = append(deps, dep)
		}
	}
	return deps
}

// Members of a cargo workspace: member globs and path dependencies, minus excluded paths.
func (m *cargoManifest) Members() Members {
	var members Members
	if !m.tree.Has("workspace") {
		return members
	}
	for _, member := range stringSlice(m.tree.GetPath([]string{"workspace", "members"})) {
		members.Includes = append(members.Includes, cleanDir(member))
	}
	for _, dep := range m.Dependencies() {
		if dep.Path != "" {
			members.Includes = append(members.Includes, cleanDir(dep.Path))
		}
	}
	for _, exclude := range stringSlice(m.tree.GetPath([]string{"workspace", "exclude"})) {
		members.Excludes = append(members.Excludes, cleanDir(exclude))
	}
	return members
}

func stringSlice(value interface{}) []string {
	values, _ := value.([]interface{})
	res := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			res = append(res, s)
		}
	}
	return res
}

func (m *cargoManifest) WithVersion(v semver.Version) ([]byte, error) {
	if !m.IsPackage() {
		return nil, status.ErrNotSupported.Wrapf("no package in workspace manifest")
	}
	if m.inheritsVersion() {
		return nil, status.ErrNotSupported.Wrapf("version of %s is inherited from the workspace", m.Name())
	}
	doc := newTomlDoc(m.content)
	if doc.setValue("package", "version", strconv.Quote(v.String())) {
		return doc.Bytes(), nil
	}
	if !doc.insertAfter("package", "name", "version = "+strconv.Quote(v.String())) {
		return nil, status.ErrParse.Wrapf("cannot locate [package] table")
	}
	return doc.Bytes(), nil
}

func (m *cargoManifest) WithDependencyVersion(name string, v semver.Version) ([]byte, bool, error) {
	doc := newTomlDoc(m.content)
	changed := false
	for _, section := range cargoDependencyTables {
		table, ok := m.tree.Get(section.table).(*toml.Tree)
		if !ok {
			continue
		}
		for _, key := range table.Keys() {
			switch value := table.GetPath([]string{key}).(type) {
			case string:
				if key != name {
					continue
				}
				if req, ok := updateRequirement(value, v); ok {
					changed = doc.setValue(section.table, key, strconv.Quote(req)) || changed
				}
			case *toml.Tree:
				pkg, _ := value.Get("package").(string)
				if key != name && pkg != name {
					continue
				}
				current, ok := value.Get("version").(string)
				if !ok {
					continue
				}
				req, ok := updateRequirement(current, v)
				if !ok {
					continue
				}
				if doc.setInline(section.table, key, "version", strconv.Quote(req)) ||
					doc.setValue(section.table+"."+key, "version", strconv.Quote(req)) {
					changed = true
				}
			}
		}
	}
	return doc.Bytes(), changed, nil
}

func newCargo(name, description string, v semver.Version) []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "[package]")
	fmt.Fprintf(&buf, "name = %s\n", strconv.Quote(name))
	fmt.Fprintf(&buf, "version = %s\n", strconv.Quote(v.String()))
	if description != "" {
		fmt.Fprintf(&buf, "description = %s\n", strconv.Quote(description))
	}
	fmt.Fprintln(&buf, `edition = "2021"`)
	fmt.Fprintln(&buf)
	fmt.Fprintln(&buf, "[dependencies]")
	return buf.Bytes()
}

// tomlDoc edits the text of a TOML document line by line.
type tomlDoc struct {
	lines []string
}

var (
	rexTableHeader = regexp.MustCompile(`^\s*\[\s*([^\[\]]+?)\s*\]\s*(#.*)?$`)
	rexArrayHeader = regexp.MustCompile(`^\s*\[\[\s*([^\[\]]+?)\s*\]\]\s*(#.*)?$`)
)

func newTomlDoc(content []byte) *tomlDoc {
	return &tomlDoc{lines: strings.Split(string(content), "\n")}
}

func (d *tomlDoc) Bytes() []byte {
	return []byte(strings.Join(d.lines, "\n"))
}

// table returns the normalized name of a table header, if the line is one
func tableHeader(line string) (string, bool, bool) {
	if m := rexArrayHeader.FindStringSubmatch(line); m != nil {
		return normalizeKey(m[1]), true, true
	}
	if m := rexTableHeader.FindStringSubmatch(line); m != nil {
		return normalizeKey(m[1]), false, true
	}
	return "", false, false
}

// normalizeKey removes quotes and spaces around the parts of a dotted key
func normalizeKey(key string) string {
	parts := strings.Split(key, ".")
	for i, part := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(part), `"'`)
	}
	return strings.Join(parts, ".")
}

// span returns the range of lines which belong to a (non-array) table
func (d *tomlDoc) span(table string) (int, int, bool) {
	start := -1
	for i, line := range d.lines {
		name, array, ok := tableHeader(line)
		if !ok {
			continue
		}
		if start >= 0 {
			return start, i, true
		}
		if !array && name == table {
			start = i + 1
		}
	}
	if start >= 0 {
		return start, len(d.lines), true
	}
	return 0, 0, false
}

func keyPattern(key string) string {
	k := regexp.QuoteMeta(key)
	return `(?:` + k + `|"` + k + `"|'` + k + `')`
}

// setValue replaces the value of a key = "value" pair in a table
func (d *tomlDoc) setValue(table, key, value string) bool {
	start, end, ok := d.span(table)
	if !ok {
		return false
	}
	rex := regexp.MustCompile(`^(\s*` + keyPattern(key) + `\s*=\s*)("[^"]*"|'[^']*')(.*)$`)
	for i := start; i < end; i++ {
		if m := rex.FindStringSubmatch(d.lines[i]); m != nil {
			d.lines[i] = m[1] + value + m[3]
			return true
		}
	}
	return false
}

// setInline replaces the value of a field in an inline table: key = { field = "value", ... }
func (d *tomlDoc) setInline(table, key, field, value string) bool {
	start, end, ok := d.span(table)
	if !ok {
		return false
	}
	rex := regexp.MustCompile(`^(\s*` + keyPattern(key) + `\s*=\s*\{.*?\b` + regexp.QuoteMeta(field) + `\s*=\s*)("[^"]*"|'[^']*')(.*)$`)
	for i := start; i < end; i++ {
		if m := rex.FindStringSubmatch(d.lines[i]); m != nil {
			d.lines[i] = m[1] + value + m[3]
			return true
		}
	}
	return false
}

// insertAfter inserts a line after some key of a table, or at the top of the table
func (d *tomlDoc) insertAfter(table, key, line string) bool {
	start, end, ok := d.span(table)
	if !ok {
		return false
	}
	at := start
	rex := regexp.MustCompile(`^\s*` + keyPattern(key) + `\s*=`)
	for i := start; i < end; i++ {
		if rex.MatchString(d.lines[i]) {
			at = i + 1
			break
		}
	}
	d.lines = append(d.lines[:at], append([]string{line}, d.lines[at:]...)...)
	return true
}
