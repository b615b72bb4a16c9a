// Package config holds the settings of the relman CLI and API service.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/oneconcern/relman/pkg/changelog"
	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/release"
	"github.com/oneconcern/relman/pkg/version"
	"github.com/spf13/viper"
)

// EnvPrefix of environment variables overriding settings, e.g. RELMAN_GITHUB_TOKEN
const EnvPrefix = "RELMAN"

// ErrConfig reports invalid settings
var ErrConfig = errors.New("invalid configuration")

// Config for relman
type Config struct {
	LogLevel string  `json:"loglevel" yaml:"loglevel" mapstructure:"loglevel"`
	GitHub   GitHub  `json:"github" yaml:"github" mapstructure:"github"`
	Server   Server  `json:"server" yaml:"server" mapstructure:"server"`
	Release  Release `json:"release" yaml:"release" mapstructure:"release"`
}

// GitHub API settings
type GitHub struct {
	Token  string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`
	APIURL string `json:"apiurl,omitempty" yaml:"apiurl,omitempty" mapstructure:"apiurl"`
}

// Server settings for the webhook API
type Server struct {
	Address         string        `json:"address" yaml:"address" mapstructure:"address"`
	WebhookSecret   string        `json:"webhooksecret,omitempty" yaml:"webhooksecret,omitempty" mapstructure:"webhooksecret"`
	ShutdownTimeout time.Duration `json:"shutdowntimeout" yaml:"shutdowntimeout" mapstructure:"shutdowntimeout"`
}

// Release builder settings
type Release struct {
	MaxRetries       int  `json:"maxretries" yaml:"maxretries" mapstructure:"maxretries"`
	UpdateDependents bool `json:"updatedependents" yaml:"updatedependents" mapstructure:"updatedependents"`
	UpdateLockfile   bool `json:"updatelockfile" yaml:"updatelockfile" mapstructure:"updatelockfile"`
	UpdateChangelog  bool `json:"updatechangelog" yaml:"updatechangelog" mapstructure:"updatechangelog"`

	// Bumps overrides the bump inferred for some changelog categories, e.g. deprecated: minor
	Bumps           map[string]string `json:"bumps,omitempty" yaml:"bumps,omitempty" mapstructure:"bumps"`
	StableMajorOnly bool              `json:"stablemajoronly" yaml:"stablemajoronly" mapstructure:"stablemajoronly"`
}

var defaults = map[string]interface{}{
	"loglevel":                 "info",
	"github.token":             "",
	"github.apiurl":            "",
	"server.address":           ":8080",
	"server.webhooksecret":     "",
	"server.shutdowntimeout":   15 * time.Second,
	"release.maxretries":       release.DefaultMaxRetries,
	"release.updatedependents": true,
	"release.updatelockfile":   true,
	"release.updatechangelog":  true,
	"release.bumps":            map[string]string{},
	"release.stablemajoronly":  true,
}

// Setup declares defaults, environment overrides and config file locations on a viper instance
func Setup(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := os.Getenv(EnvPrefix + "_CONFIG"); file != "" {
		v.SetConfigFile(file)
		return
	}
	v.SetConfigName("relman")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.relman")
	v.AddConfigPath("/etc/relman")
}

// Load settings. A missing config file is not an error.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, ErrConfig.Wrap(err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, ErrConfig.Wrap(err)
	}
	return cfg, cfg.Validate()
}

// Validate settings
func (c Config) Validate() error {
	if c.Release.MaxRetries < 0 {
		return ErrConfig.Wrapf("release.maxretries must not be negative")
	}
	_, err := c.Policy()
	return err
}

// Policy to infer version bumps
func (c Config) Policy() (version.Policy, error) {
	policy := version.DefaultPolicy()
	policy.StableMajorOnly = c.Release.StableMajorOnly
	for category, bump := range c.Release.Bumps {
		b, err := version.ParseBump(bump)
		if err != nil {
			return policy, ErrConfig.Wrapf("release.bumps.%s: %v", category, err)
		}
		if b > version.Major {
			return policy, ErrConfig.Wrapf("release.bumps.%s: %s cannot be inferred", category, b)
		}
		policy.Bumps[changelog.ParseCategory(category)] = b
	}
	return policy, nil
}

// ReleaseOptions for the release builder and dispatcher
func (c Config) ReleaseOptions() ([]release.Option, error) {
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}
	return []release.Option{
		release.MaxRetries(c.Release.MaxRetries),
		release.Policy(policy),
		release.UpdateDependents(c.Release.UpdateDependents),
		release.UpdateLockfile(c.Release.UpdateLockfile),
		release.UpdateChangelog(c.Release.UpdateChangelog),
	}, nil
}
