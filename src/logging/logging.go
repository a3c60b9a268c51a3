// Package logging builds the slog handlers used by the CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (supported: debug, info, warn, error)", name)
}

// TextHandler returns a human-readable handler. Debug output adds
// timestamps and callers.
func TextHandler(level slog.Level, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}
	debug := level <= slog.LevelDebug
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: debug,
		ReportCaller:    debug,
		Level:           log.Level(level),
	})
}

// JSONHandler returns a handler writing one JSON object per record.
func JSONHandler(level slog.Level, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// New builds a logger for the given level name and format.
func New(levelName, format string, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.New(TextHandler(level, w)), nil
	case FormatJSON:
		return slog.New(JSONHandler(level, w)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (supported: text, json)", format)
}
