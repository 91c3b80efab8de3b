// Package log holds the process-wide zap logger used by the threadsplit
// command.
package log

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// New builds a logger at the given level ("debug", "info", "warn", "error").
// A development logger writes human-readable console output, otherwise JSON.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}

// Init installs l as the logger returned by L and as zap's global logger.
// The returned function restores the previous loggers.
func Init(l *zap.Logger) (restore func()) {
	if l == nil {
		l = zap.NewNop()
	}
	prev := global.Swap(l)
	undo := zap.ReplaceGlobals(l)
	return func() {
		undo()
		global.Store(prev)
	}
}

// L returns the process-wide logger. It is a no-op logger until Init is
// called.
func L() *zap.Logger {
	return global.Load()
}
