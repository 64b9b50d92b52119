// Package logger builds the process-wide slog.Logger from config strings.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a logger for the given level ("debug", "info", "warn",
// "error") and format ("text" or "json"), writing to stderr. Unrecognized
// values fall back to info-level text output.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination, used by tests.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a config string to a slog.Level. Matching is
// case-insensitive; "warning" is accepted as an alias for "warn" and
// anything unrecognized means info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
