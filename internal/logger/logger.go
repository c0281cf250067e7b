// Package logger provides structured logging for the batch jobs service using
// the standard library's log/slog.
//
// Usage:
//
//	log := logger.New("json", "info")
//	ctx  := logger.WithContext(ctx, log)
//	// ... later:
//	logger.FromContext(ctx).Info("job started", "jobType", jobType)
package logger

import (
	"context"
	"log/slog"
	"os"
)

type contextKey struct{}

// New creates a *slog.Logger with the given format and level.
//
// format: "json" (default, production) or "pretty" (text, development).
// level:  "debug", "info" (default), "warn", "error".
//
// The logger always writes to os.Stdout, with AddSource: true so log lines
// are greppable to exact callsites.
func New(format, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: true,
	}

	if format == "pretty" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// WithContext returns a new context that carries the given logger.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in ctx by WithContext, or
// slog.Default() if none is present.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
