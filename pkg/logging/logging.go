// Package logging wires the process-wide slog default for Lumo.
//
// Output goes to stderr through tint: compact colored lines for local runs
// while every field stays structured. The level is read from the LOG_LEVEL
// environment variable (debug, info, warn, error; info when unset).
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default logger at the level given by LOG_LEVEL.
func Setup() {
	SetupWithLevel(parseLevel(os.Getenv("LOG_LEVEL")))
}

// SetupWithLevel installs the default logger at an explicit level.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}),
	))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
