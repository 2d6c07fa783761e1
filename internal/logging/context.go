// Package logging carries request-scoped slog loggers and trace identifiers, and keeps
// recent records for the admin log view.
package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	traceKey
)

// Service names attached to log records. The admin log view filters on them.
const (
	ServiceAuth      = "auth"
	ServiceProcessor = "processor"
	ServiceSystem    = "system"
	ServiceDatabase  = "database"
)

// Trace identifies where a record was produced: the HTTP request, the trace it belongs
// to and the innermost span.
type Trace struct {
	RequestID string
	TraceID   string
	SpanID    string
}

// WithLogger stores logger on ctx. A nil logger leaves ctx unchanged.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the request-scoped logger or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

// WithService tags the context logger with the owning service name.
func WithService(ctx context.Context, service string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(slog.String("service", service)))
}

// TraceFromContext returns the identifiers recorded so far. Missing ones are empty.
func TraceFromContext(ctx context.Context) Trace {
	if ctx == nil {
		return Trace{}
	}
	t, _ := ctx.Value(traceKey).(Trace)
	return t
}

func withTrace(ctx context.Context, mutate func(*Trace)) context.Context {
	t := TraceFromContext(ctx)
	mutate(&t)
	return context.WithValue(ctx, traceKey, t)
}

// WithRequestID records the HTTP request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return withTrace(ctx, func(t *Trace) { t.RequestID = requestID })
}

// RequestIDFromContext returns the identifier stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	return TraceFromContext(ctx).RequestID
}
