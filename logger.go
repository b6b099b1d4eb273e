package thickidx

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/model"
)

// Logger wraps slog.Logger with thickidx-specific context.
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
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithID adds an ID field to the logger (useful for tagging operations).
func (l *Logger) WithID(id core.OID) *Logger {
	return &Logger{
		Logger: l.Logger.With("oid", uint32(id)),
	}
}

// errorLevel logs failures caused by the caller at Warn and everything else,
// such as storage failures, at Error.
func errorLevel(err error) slog.Level {
	switch {
	case errors.Is(err, ErrKeyNotUnique),
		errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrIndexExists),
		errors.Is(err, ErrReadOnly),
		errors.Is(err, ErrClosed):
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// LogPut logs an index insertion.
func (l *Logger) LogPut(ctx context.Context, index string, key model.Key, oid core.OID, err error) {
	if err != nil {
		l.Log(ctx, errorLevel(err), "put failed",
			"index", index,
			"key", key.String(),
			"oid", uint32(oid),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "put completed",
			"index", index,
			"key", key.String(),
			"oid", uint32(oid),
		)
	}
}

// LogRemove logs an index removal.
func (l *Logger) LogRemove(ctx context.Context, index string, key model.Key, oid core.OID, err error) {
	if err != nil {
		l.Log(ctx, errorLevel(err), "remove failed",
			"index", index,
			"key", key.String(),
			"oid", uint32(oid),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"index", index,
			"key", key.String(),
			"oid", uint32(oid),
		)
	}
}

// LogRecord logs a record mutation. Use WithID to tag the record.
func (l *Logger) LogRecord(ctx context.Context, op string, err error) {
	if err != nil {
		l.Log(ctx, errorLevel(err), op+" record failed", "error", err)
	} else {
		l.DebugContext(ctx, op+" record completed")
	}
}

// LogIndex logs the creation or removal of a named index.
func (l *Logger) LogIndex(ctx context.Context, op, index string, err error) {
	if err != nil {
		l.Log(ctx, errorLevel(err), op+" index failed",
			"index", index,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, op+" index completed",
			"index", index,
		)
	}
}

// LogCommit logs a commit.
func (l *Logger) LogCommit(ctx context.Context, version uint64, objects int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed",
			"objects", objects,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "commit completed",
			"version", version,
			"objects", objects,
		)
	}
}

// LogOpen logs opening a database.
func (l *Logger) LogOpen(ctx context.Context, backend string, version uint64, indexes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"backend", backend,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "database opened",
			"backend", backend,
			"version", version,
			"indexes", indexes,
		)
	}
}
