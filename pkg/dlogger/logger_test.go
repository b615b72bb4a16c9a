package dlogger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestGetLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		opts     []Option
		enabled  zapcore.Level
		disabled zapcore.Level
		wantErr  bool
	}{
		{name: "default", level: "", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{name: "info", level: LogLevelInfo, enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{name: "debug", level: LogLevelDebug, opts: []Option{Console()}, enabled: zapcore.DebugLevel, disabled: zapcore.DebugLevel - 1},
		{name: "warn", level: " WARN ", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
		{name: "error", level: LogLevelError, opts: []Option{Component("relmand", "1.0.0")}, enabled: zapcore.ErrorLevel, disabled: zapcore.WarnLevel},
		{name: "invalid", level: "chatty", wantErr: true},
	}
	for _, tts := range tests {
		tt := tts
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := GetLogger(tt.level, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "expected one of: none, error, warn, info, debug")
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.enabled))
			assert.False(t, l.Core().Enabled(tt.disabled))
		})
	}
}

func TestNoneLogger(t *testing.T) {
	l, err := GetLogger(LogLevelNone, Console())
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}
