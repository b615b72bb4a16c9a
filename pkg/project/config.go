package project

import (
	"context"

	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/repository/status"
	"gopkg.in/yaml.v2"
)

// ConfigPath is the location of the project configuration
const ConfigPath = ".relman/config.yaml"

// Config of a project
type Config struct {
	Project ProjectInfo `json:"project" yaml:"project"`
}

// ProjectInfo describes a project
type ProjectInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Repository  string `json:"repository,omitempty" yaml:"repository,omitempty"`
}

// Config reads the project configuration. A missing file yields an empty configuration.
func (p *Project) Config(ctx context.Context) (Config, error) {
	var cfg Config
	content, err := p.ReadFile(ctx, ConfigPath)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, newParseError(ConfigPath, err)
	}
	return cfg, nil
}

// MarshalConfig renders a project configuration
func MarshalConfig(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
