package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLevels(t *testing.T) {
	for _, tt := range []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	} {
		for _, dev := range []bool{false, true} {
			l, err := New(tt.level, dev)
			require.NoError(t, err, tt.level)
			assert.True(t, l.Core().Enabled(tt.want), tt.level)
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1), tt.level)
			}
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", false)
	assert.Error(t, err)
}

func TestInitReplacesGlobals(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	restore := Init(l)
	L().Info("via accessor")
	zap.L().Info("via zap")
	assert.Equal(t, 2, logs.Len())

	restore()
	L().Info("dropped")
	assert.Equal(t, 2, logs.Len())
}

func TestLDefaultsToNop(t *testing.T) {
	require.NotNil(t, L())
	assert.False(t, L().Core().Enabled(zapcore.ErrorLevel))
}
