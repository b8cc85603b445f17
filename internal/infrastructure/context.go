package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type traceIDKey struct{}

// WithTraceID stores the id that log records of this request or run carry
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// GetTraceID returns the id stored by WithTraceID, or "".
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// NewTraceID returns a random id for work that did not arrive over HTTP.
func NewTraceID() string {
	return uuid.NewString()
}

// EnsureTraceID returns ctx unchanged if it already carries a trace id and
// otherwise attaches a fresh one.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, NewTraceID())
}

// LoggerWithContext is the global logger tagged with ctx's trace id.
func LoggerWithContext(ctx context.Context) *slog.Logger {
	if id := GetTraceID(ctx); id != "" {
		return GetLogger().With(slog.String("trace_id", id))
	}
	return GetLogger()
}

// WithComponent tags records with the package or service that emitted them.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithError tags records with err. A nil err leaves logger as it is.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}
