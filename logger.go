package svdgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with svdgo-specific context.
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

// WithComponents adds a components field to the logger.
func (l *Logger) WithComponents(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("components", k),
	}
}

// WithSamples adds a samples field to the logger.
func (l *Logger) WithSamples(n int) *Logger {
	return &Logger{
		Logger: l.Logger.With("samples", n),
	}
}

// WithFeatures adds a features field to the logger.
func (l *Logger) WithFeatures(p int) *Logger {
	return &Logger{
		Logger: l.Logger.With("features", p),
	}
}

// WithPartitions adds a partitions field to the logger.
func (l *Logger) WithPartitions(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("partitions", count),
	}
}

// LogSave logs a model snapshot save operation.
func (l *Logger) LogSave(ctx context.Context, model, name string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"model", model,
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"model", model,
			"name", name,
			"bytes", bytes,
		)
	}
}

// LogLoad logs a model snapshot load operation.
func (l *Logger) LogLoad(ctx context.Context, model, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"model", model,
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot loaded",
			"model", model,
			"name", name,
		)
	}
}
