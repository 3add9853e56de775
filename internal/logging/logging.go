// Package logging builds the zap logger used across kmd. Diagnostics go to a
// JSON log file inside the workspace so they never mix with command output.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file inside the workspace logs directory.
const FileName = "kmd.log"

// New returns a production-style JSON logger appending to logsDir/kmd.log at
// the given level ("debug", "info", "warn", "error"; empty means info). When
// debug is true, warnings and above are mirrored to stderr in console form.
func New(logsDir, level string, debug bool) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{filepath.Join(logsDir, FileName)}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if !debug {
		return logger, nil
	}

	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		zapcore.WarnLevel,
	)
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, console)
	})), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
