package rangebitmap

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with rangebitmap-specific context.
// This provides structured logging with consistent field names.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRows adds a row count field to the logger.
func (l *Logger) WithRows(rows uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("rows", rows),
	}
}

// WithSlices adds a slice count field to the logger.
func (l *Logger) WithSlices(slices int) *Logger {
	return &Logger{
		Logger: l.Logger.With("slices", slices),
	}
}

// WithOp adds an operator field to the logger (lt, lte, gt, gte, between).
func (l *Logger) WithOp(op string) *Logger {
	return &Logger{
		Logger: l.Logger.With("op", op),
	}
}

// LogBuild logs an index build.
func (l *Logger) LogBuild(ctx context.Context, rows uint64, slices int, bytes int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"rows", rows,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "build completed",
			"rows", rows,
			"slices", slices,
			"bytes", bytes,
			"elapsed", elapsed,
		)
	}
}

// LogMap logs mapping a serialized index.
func (l *Logger) LogMap(ctx context.Context, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "map failed",
			"bytes", bytes,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "map completed",
			"bytes", bytes,
		)
	}
}

// LogQuery logs a range query.
func (l *Logger) LogQuery(ctx context.Context, op string, matches uint64, elapsed time.Duration) {
	l.DebugContext(ctx, "query completed",
		"op", op,
		"matches", matches,
		"elapsed", elapsed,
	)
}

// LogSave logs a save operation.
func (l *Logger) LogSave(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index saved",
			"filename", filename,
		)
	}
}

// LogLoad logs a load operation.
func (l *Logger) LogLoad(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index loaded",
			"filename", filename,
		)
	}
}
