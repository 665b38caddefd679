package polyalloc

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with polyalloc field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogMigration logs a data copy between allocations.
func (l *Logger) LogMigration(ctx context.Context, rows int64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "migration failed",
			"rows", rows,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "migration completed",
			"rows", rows,
			"duration", d,
		)
	}
}

// LogConstraintViolation logs a verb refused by a placement rule.
func (l *Logger) LogConstraintViolation(ctx context.Context, verb string) {
	l.WarnContext(ctx, "constraint rejected statement",
		"verb", verb,
	)
}

// LogCommit logs a transaction commit.
func (l *Logger) LogCommit(ctx context.Context, version uint64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed",
			"version", version,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "commit completed",
			"version", version,
			"duration", d,
		)
	}
}
