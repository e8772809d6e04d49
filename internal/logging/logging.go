// Package logging sets up the process-wide slog default logger. Level
// is info unless overridden, matching the teacher's use of slog's
// package-level Error/Debug calls unadorned by any handler setup.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// EnvVar is the environment variable consulted for the log level,
// following the same default-to-info convention as env_logger's
// `default_filter_or("info")`.
const EnvVar = "CALYX_LOG"

// Setup installs a text-handler default logger at the level named by
// EnvVar, defaulting to info if unset or unrecognized.
func Setup() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv(EnvVar)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
