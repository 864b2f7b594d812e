// Package observability owns the process-wide loggers. CLILogger is
// console-oriented output for command runs; NewLogger builds the
// structured logger the server uses.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger commands write user-facing output to. It is
// replaced by InitLogging once configuration is known; the default
// writes readable console lines at info level.
var CLILogger *zap.Logger

func init() {
	CLILogger = newConsoleLogger(zapcore.InfoLevel)
}

// InitLogging reconfigures the global CLI logger. profile selects the
// encoder: "console" for human-readable lines, "structured" for JSON.
func InitLogging(level, profile string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}

	switch strings.ToLower(profile) {
	case "", "console":
		CLILogger = newConsoleLogger(lvl)
	case "structured", "json":
		logger, err := NewLogger(level)
		if err != nil {
			return err
		}
		CLILogger = logger
	default:
		return fmt.Errorf("unknown logging profile %q", profile)
	}
	return nil
}

// NewLogger builds a production JSON logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func newConsoleLogger(lvl zapcore.Level) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	logger, err := cfg.Build()
	if err != nil {
		// Development config with static options cannot fail to build;
		// fall back to a no-op logger if it ever does.
		return zap.NewNop()
	}
	return logger
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// Sync flushes buffered log entries. Called on process exit.
func Sync() {
	if CLILogger != nil {
		_ = CLILogger.Sync()
	}
}
