// Package logger configures the zap structured logger used across the
// application. Secret material must never be passed to it.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps the configured zap logger
type Logger struct {
	Log *zap.Logger
}

// New returns an uninitialized logger that discards everything until
// Init is called.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init builds the zap logger at the given level ("debug", "info",
// "warn", "error").
func (l *Logger) Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	l.Log = logger
	return nil
}
