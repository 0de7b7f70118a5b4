// Package logger provides structured logging utilities.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

type ctxKey struct{}

// RunIDKey is the context key under which a run identifier is stored.
var RunIDKey = ctxKey{}

// Logger wraps slog.Logger with additional context.
type Logger struct {
	*slog.Logger
}

// New creates a new logger with the specified level and format, writing to stdout.
func New(level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter creates a logger that writes to w.
func NewWithWriter(w io.Writer, level, format string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewFile creates a logger appending to the file at path. The returned
// closer must be closed by the caller. An empty path logs to stdout.
func NewFile(path, level, format string) (*Logger, io.Closer, error) {
	if path == "" {
		return New(level, format), io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return NewWithWriter(f, level, format), f, nil
}

// WithContext returns a logger with context values.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if runID := ctx.Value(RunIDKey); runID != nil {
		return &Logger{
			Logger: l.With("run_id", runID),
		}
	}
	return l
}

// WithRun returns a logger tagged with a run identifier.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		Logger: l.With("run_id", runID),
	}
}

// WithModel returns a logger tagged with a language model name.
func (l *Logger) WithModel(model string) *Logger {
	return &Logger{
		Logger: l.With("model", model),
	}
}

// WithError returns a logger with error context.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With("error", err.Error()),
	}
}

func parseLevel(level string) slog.Level {
	switch level {
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

// Default returns the default logger.
func Default() *Logger {
	return New("info", "text")
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "error", "text")
}
