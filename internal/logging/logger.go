package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides structured logging for the worker
type Logger struct {
	prefix string
	logger *slog.Logger
}

// NewLogger creates a new logger with a prefix, writing through the default slog handler
func NewLogger(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		logger: slog.Default().With("component", prefix),
	}
}

// NewLoggerWithHandler creates a logger bound to a specific handler
func NewLoggerWithHandler(prefix string, h slog.Handler) *Logger {
	return &Logger{
		prefix: prefix,
		logger: slog.New(h).With("component", prefix),
	}
}

// Setup installs the process-wide slog handler.
// format is "json" or "text"; level is debug, info, warn or error.
func Setup(level, format string) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, level, format)))
}

// NewHandler builds a handler for the given level and format
func NewHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ParseLevel maps a level name to a slog level, defaulting to info
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

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV(slog.LevelInfo, msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV(slog.LevelWarn, msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV(slog.LevelError, msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logWithKV(slog.LevelDebug, msg, keysAndValues...)
}

// With returns a logger that adds the given key-value pairs to every record
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		prefix: l.prefix,
		logger: l.logger.With(keysAndValues...),
	}
}

func (l *Logger) logWithKV(level slog.Level, msg string, keysAndValues ...interface{}) {
	// drop a dangling key rather than emitting !BADKEY
	if len(keysAndValues)%2 != 0 {
		keysAndValues = keysAndValues[:len(keysAndValues)-1]
	}
	l.logger.Log(context.Background(), level, msg, keysAndValues...)
}
