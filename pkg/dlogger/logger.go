// Package dlogger builds the zap loggers used by relman and relmand
package dlogger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels, by increasing order of verbosity
const (
	LogLevelNone  = "none"
	LogLevelError = "error"
	LogLevelWarn  = "warn"
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
)

// Levels lists the accepted log levels
func Levels() []string {
	return []string{LogLevelNone, LogLevelError, LogLevelWarn, LogLevelInfo, LogLevelDebug}
}

type settings struct {
	config zap.Config
	fields []zap.Field
}

// Option tunes the logger
type Option func(*settings)

// Console switches to a human readable encoding, for interactive use.
// Entries are not sampled and stack traces are left out.
func Console() Option {
	return func(s *settings) {
		s.config.Encoding = "console"
		s.config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		s.config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		s.config.DisableStacktrace = true
		s.config.Sampling = nil
	}
}

// Component tags all entries with the name and version of the emitting program
func Component(name, version string) Option {
	return func(s *settings) {
		s.fields = append(s.fields, zap.String("component", name))
		if version != "" {
			s.fields = append(s.fields, zap.String("version", version))
		}
	}
}

// GetLogger returns a zap logger with the specified level. An empty level means info.
func GetLogger(logLevel string, opts ...Option) (*zap.Logger, error) {
	logLevel = strings.ToLower(strings.TrimSpace(logLevel))
	if logLevel == LogLevelNone {
		return zap.NewNop(), nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q, expected one of: %s", logLevel, strings.Join(Levels(), ", "))
	}

	s := settings{config: zap.NewProductionConfig()}
	s.config.Level = zap.NewAtomicLevelAt(lvl)
	for _, apply := range opts {
		apply(&s)
	}
	return s.config.Build(zap.Fields(s.fields...))
}
