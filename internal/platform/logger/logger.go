package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns the process logger. Production logs JSON; development logs text
// unless format says otherwise.
func New(level, format string, development bool) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format, development)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string, development bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	useText := development
	switch strings.ToLower(format) {
	case "json":
		useText = false
	case "text":
		useText = true
	}

	var handler slog.Handler
	if useText {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", "emissions")
}

// Discard is a logger for tests and tools that must not write anywhere.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
