package manifest

import (
	"regexp"
	"strconv"

	"github.com/blang/semver"
	"github.com/oneconcern/relman/pkg/repository/status"
	toml "github.com/pelletier/go-toml"
)

var (
	rexLockName    = regexp.MustCompile(`^\s*name\s*=\s*"([^"]*)"`)
	rexLockVersion = regexp.MustCompile(`^(\s*version\s*=\s*)"[^"]*"(.*)$`)
)

type cargoLock struct {
	content  []byte
	versions map[string]string
}

func parseCargoLock(content []byte) (*cargoLock, error) {
	tree, err := toml.LoadBytes(content)
	if err != nil {
		return nil, status.ErrParse.Wrap(err)
	}
	lock := &cargoLock{content: content, versions: make(map[string]string)}
	packages, _ := tree.Get("package").([]*toml.Tree)
	for _, pkg := range packages {
		name, _ := pkg.Get("name").(string)
		version, _ := pkg.Get("version").(string)
		if _, dup := lock.versions[name]; !dup {
			lock.versions[name] = version
		}
	}
	return lock, nil
}

func (l *cargoLock) Kind() Kind {
	return Cargo
}

func (l *cargoLock) PackageVersion(name string) (string, bool) {
	v, ok := l.versions[name]
	return v, ok
}

// WithPackageVersion updates the version of local packages named name. Registry packages
// carry a source and are left alone.
func (l *cargoLock) WithPackageVersion(name string, v semver.Version) ([]byte, bool, error) {
	doc := newTomlDoc(l.content)
	found := false
	inBlock := false
	blockName := ""
	versionLine := -1
	hasSource := false

	flush := func() {
		if inBlock && blockName == name && versionLine >= 0 && !hasSource {
			m := rexLockVersion.FindStringSubmatch(doc.lines[versionLine])
			doc.lines[versionLine] = m[1] + strconv.Quote(v.String()) + m[2]
			found = true
		}
	}

	for i, line := range doc.lines {
		if table, array, ok := tableHeader(line); ok {
			flush()
			inBlock = array && table == "package"
			blockName, versionLine, hasSource = "", -1, false
			continue
		}
		if !inBlock {
			continue
		}
		if m := rexLockName.FindStringSubmatch(line); m != nil {
			blockName = m[1]
		} else if rexLockVersion.MatchString(line) {
			versionLine = i
		} else if rexLockSource.MatchString(line) {
			hasSource = true
		}
	}
	flush()
	return doc.Bytes(), found, nil
}

var rexLockSource = regexp.MustCompile(`^\s*source\s*=`)
