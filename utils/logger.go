package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides leveled, printf-style logging throughout the application.
// Records are emitted through a slog handler so they can be rendered as text
// or JSON.
type Logger struct {
	log *slog.Logger
}

// LoggerOptions selects the output stream, format and minimum level.
type LoggerOptions struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// NewLogger creates a text Logger writing info and above to stdout.
func NewLogger() *Logger {
	return NewLoggerWith(LoggerOptions{})
}

// NewLoggerWith creates a Logger from explicit options. Unknown levels fall
// back to info.
func NewLoggerWith(opts LoggerOptions) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}
	return &Logger{log: slog.New(h)}
}

// NewDiscardLogger returns a Logger that drops everything. Used by tests.
func NewDiscardLogger() *Logger {
	return &Logger{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps debug, info, warn/warning and error (case-insensitive) to a
// slog level.
func ParseLevel(level string) slog.Level {
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

// With returns a child logger that attaches key=value to every record.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{log: l.log.With(key, value)}
}

func (l *Logger) Info(format string, args ...any) {
	l.emit(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.emit(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.emit(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.emit(slog.LevelDebug, format, args...)
}

func (l *Logger) emit(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}
	l.log.Log(ctx, level, fmt.Sprintf(format, args...))
}
