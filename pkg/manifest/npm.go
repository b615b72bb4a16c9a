package manifest

import (
	"strings"

	"github.com/blang/semver"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var npmDependencyFields = []struct {
	field string
	kind  DependencyKind
}{
	{field: "dependencies", kind: Normal},
	{field: "devDependencies", kind: Development},
	{field: "peerDependencies", kind: Peer},
	{field: "optionalDependencies", kind: Optional},
}

type npmManifest struct {
	content []byte
}

func parseNpm(content []byte) (*npmManifest, error) {
	if !gjson.ValidBytes(content) {
		return nil, status.ErrParse.Wrapf("invalid JSON in package.json")
	}
	if !gjson.ParseBytes(content).IsObject() {
		return nil, status.ErrParse.Wrapf("package.json is not an object")
	}
	if v := gjson.GetBytes(content, "version"); v.Exists() {
		if _, err := semver.Parse(v.String()); err != nil {
			return nil, status.ErrParse.Wrap(err)
		}
	}
	return &npmManifest{content: content}, nil
}

func (m *npmManifest) Kind() Kind {
	return Npm
}

// IsPackage is false for private workspace roots without a name
func (m *npmManifest) IsPackage() bool {
	return m.Name() != ""
}

func (m *npmManifest) Name() string {
	return gjson.GetBytes(m.content, "name").String()
}

func (m *npmManifest) Description() string {
	return gjson.GetBytes(m.content, "description").String()
}

func (m *npmManifest) Version() semver.Version {
	if v, err := semver.Parse(gjson.GetBytes(m.content, "version").String()); err == nil {
		return v
	}
	return semver.Version{}
}

func (m *npmManifest) Bytes() []byte {
	return m.content
}

func (m *npmManifest) Dependencies() []Dependency {
	var deps []Dependency
	for _, section := range npmDependencyFields {
		gjson.GetBytes(m.content, section.field).ForEach(func(key, value gjson.Result) bool {
			dep := Dependency{Name: key.String(), Requirement: value.String(), Kind: section.kind}
			if strings.HasPrefix(dep.Requirement, "file:") {
				dep.Path = strings.TrimPrefix(dep.Requirement, "file:")
				dep.Requirement = ""
			}
			deps = append(deps, dep)
			return true
		})
	}
	return deps
}

// Members of an npm workspace: "workspaces" is either an array of globs or an object
// with a "packages" array. Globs starting with "!" are exclusions.
func (m *npmManifest) Members() Members {
	var members Members
	workspaces := gjson.GetBytes(m.content, "workspaces")
	if workspaces.IsObject() {
		workspaces = workspaces.Get("packages")
	}
	for _, entry := range workspaces.Array() {
		pattern := entry.String()
		if strings.HasPrefix(pattern, "!") {
			members.Excludes = append(members.Excludes, cleanDir(strings.TrimPrefix(pattern, "!")))
			continue
		}
		members.Includes = append(members.Includes, cleanDir(pattern))
	}
	return members
}

func (m *npmManifest) WithVersion(v semver.Version) ([]byte, error) {
	if !m.IsPackage() {
		return nil, status.ErrNotSupported.Wrapf("no package in workspace manifest")
	}
	content, err := sjson.SetBytes(m.content, "version", v.String())
	if err != nil {
		return nil, status.ErrParse.Wrap(err)
	}
	return content, nil
}

func (m *npmManifest) WithDependencyVersion(name string, v semver.Version) ([]byte, bool, error) {
	content := m.content
	changed := false
	for _, section := range npmDependencyFields {
		current := gjson.GetBytes(content, section.field+"."+escapePath(name))
		if !current.Exists() {
			continue
		}
		req, ok := updateRequirement(current.String(), v)
		if !ok {
			continue
		}
		updated, err := sjson.SetBytes(content, section.field+"."+escapePath(name), req)
		if err != nil {
			return nil, false, status.ErrParse.Wrap(err)
		}
		content = updated
		changed = true
	}
	return content, changed, nil
}

// escapePath escapes a key for use as a component of a gjson path
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '\\', '@', '#', '|', '!', '=', '<', '>', '%', '"':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

type npmTemplate struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	License     string `json:"license,omitempty"`
}

func newNpm(name, description string, v semver.Version) ([]byte, error) {
	content, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(npmTemplate{
		Name:        name,
		Version:     v.String(),
		Description: description,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(content, '\n'), nil
}
