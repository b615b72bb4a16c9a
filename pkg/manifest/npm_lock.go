package manifest

import (
	"bytes"
	"strings"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/repository/status"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type npmLock struct {
	content []byte
}

func parseNpmLock(content []byte) (*npmLock, error) {
	if !gjson.ValidBytes(content) || !gjson.ParseBytes(content).IsObject() {
		return nil, status.ErrParse.Wrapf("invalid package-lock.json")
	}
	return &npmLock{content: content}, nil
}

func (l *npmLock) Kind() Kind {
	return Npm
}

func (l *npmLock) PackageVersion(name string) (string, bool) {
	if gjson.GetBytes(l.content, "name").String() == name {
		if v := gjson.GetBytes(l.content, "version"); v.Exists() {
			return v.String(), true
		}
	}
	var (
		version string
		found   bool
	)
	gjson.GetBytes(l.content, "packages").ForEach(func(key, value gjson.Result) bool {
		if lockEntryMatches(name, key.String(), value) {
			version, found = value.Get("version").String(), true
			return false
		}
		return true
	})
	return version, found
}

// lockEntryMatches tells if an entry of the "packages" map of a lockfile is the local
// package named name. Links into node_modules carry no version and are skipped.
func lockEntryMatches(name, key string, value gjson.Result) bool {
	if value.Get("link").Bool() || !value.Get("version").Exists() {
		return false
	}
	if value.Get("name").String() == name {
		return true
	}
	return key == "node_modules/"+name && !value.Get("resolved").Exists()
}

// WithPackageVersion updates the root version and the matching entries of the packages map.
func (l *npmLock) WithPackageVersion(name string, v semver.Version) ([]byte, bool, error) {
	content := l.content
	found := false
	if gjson.GetBytes(content, "name").String() == name && gjson.GetBytes(content, "version").Exists() {
		updated, err := sjson.SetBytes(content, "version", v.String())
		if err != nil {
			return nil, false, status.ErrParse.Wrap(err)
		}
		content, found = updated, true
	}

	packages := gjson.GetBytes(content, "packages")
	if !packages.IsObject() {
		return content, found, nil
	}
	start := bytes.Index(content, []byte(`"packages"`))
	if start < 0 {
		return content, found, nil
	}
	var replacements [][2]string
	packages.ForEach(func(key, value gjson.Result) bool {
		if !lockEntryMatches(name, key.String(), value) {
			return true
		}
		entry, err := sjson.Set(value.Raw, "version", v.String())
		if err == nil {
			replacements = append(replacements, [2]string{value.Raw, entry})
		}
		return true
	})

	// entries are rewritten in place, so the layout of the lockfile is preserved
	head, tail := string(content[:start]), string(content[start:])
	offset := 0
	for _, r := range replacements {
		i := strings.Index(tail[offset:], r[0])
		if i < 0 {
			continue
		}
		i += offset
		tail = tail[:i] + r[1] + tail[i+len(r[0]):]
		offset = i + len(r[1])
		found = true
	}
	return []byte(head + tail), found, nil
}
