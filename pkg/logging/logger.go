package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MatusOllah/slogcolor"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
}

// Output formats understood by NewWithFormat.
const (
	FormatJSON  = "json"
	FormatText  = "text"
	FormatColor = "color"
)

// New creates a JSON logger on stdout with the specified level
func New(level string) *Logger {
	return NewWithFormat(level, FormatJSON)
}

// NewWithFormat creates a logger writing the given format. The color format
// is meant for interactive terminals and writes to stderr.
func NewWithFormat(level, format string) *Logger {
	return newLogger(parseLevel(level), format, os.Stdout, os.Stderr)
}

func newLogger(logLevel slog.Level, format string, out, term io.Writer) *Logger {
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText:
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel})
	case FormatColor:
		opts := *slogcolor.DefaultOptions
		opts.Level = logLevel
		handler = slogcolor.NewHandler(term, &opts)
	default:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel})
	}
	return &Logger{Logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// With returns a child logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *Logger {
	return newLogger(slog.LevelError+1, FormatText, io.Discard, io.Discard)
}
