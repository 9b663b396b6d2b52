// Package log builds the process-wide structured logger. One instance
// is constructed at startup and threaded down through every
// collaborator rather than referenced as a package-level global.
package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger at the given level ("debug", "info", "warn",
// "error"). An unrecognized level falls back to "info".
func New(level string) (*zap.Logger, error) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		zl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
