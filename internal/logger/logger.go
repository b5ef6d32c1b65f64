// Package logger provides structured logging using log/slog.
// It sets up a JSON handler with service-level context and propagates a
// per-load id through context.Context so every line of one chart load can be
// correlated.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type ctxKey string

const loadIDKey ctxKey = "load_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	return InitWriter(os.Stdout, service, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops everything. Tests and the CLI use it.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithLoadID stores a load id in the context for downstream propagation.
func WithLoadID(ctx context.Context, loadID string) context.Context {
	return context.WithValue(ctx, loadIDKey, loadID)
}

// LoadID extracts the load id from context. Returns "" if not set.
func LoadID(ctx context.Context) string {
	if v, ok := ctx.Value(loadIDKey).(string); ok {
		return v
	}
	return ""
}

// NewLoadID returns a fresh random load id.
func NewLoadID() string {
	return uuid.NewString()
}

// LogWithLoad returns slog attributes including the load id from context.
// Usage: log.Info("msg", logger.LogWithLoad(ctx)...)
func LogWithLoad(ctx context.Context) []any {
	id := LoadID(ctx)
	if id == "" {
		return nil
	}
	return []any{slog.String("load_id", id)}
}
