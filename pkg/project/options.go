package project

import (
	"github.com/oneconcern/relman/pkg/manifest"
	"go.uber.org/zap"
)

// Option for a project
type Option func(*Project)

// Logger for the project
func Logger(l *zap.Logger) Option {
	return func(p *Project) {
		if l != nil {
			p.l = l
		}
	}
}

// Kinds of packages to discover. Defaults to all supported kinds.
func Kinds(kinds ...manifest.Kind) Option {
	return func(p *Project) {
		if len(kinds) > 0 {
			p.kinds = kinds
		}
	}
}

func defaultProject() *Project {
	return &Project{
		l:     zap.NewNop(),
		kinds: manifest.Kinds(),
	}
}
