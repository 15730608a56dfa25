package fusego

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with fusego-specific helpers. This provides
// structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithCollection adds a collection field to the logger.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{Logger: l.Logger.With("collection", name)}
}

// LogUpsert logs an upsert operation.
func (l *Logger) LogUpsert(ctx context.Context, collection, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "upsert failed", "collection", collection, "id", id, "error", err)
		return
	}

	l.DebugContext(ctx, "upsert ok", "collection", collection, "id", id)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, collection string, k, hits int, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "collection", collection, "k", k, "error", err)
		return
	}

	l.DebugContext(ctx, "search ok", "collection", collection, "k", k, "hits", hits, "took", took)
}

// LogCompaction logs a compaction run.
func (l *Logger) LogCompaction(ctx context.Context, collection string, removed int, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compaction failed", "collection", collection, "error", err)
		return
	}

	l.InfoContext(ctx, "compaction ok", "collection", collection, "removed", removed, "took", took)
}
