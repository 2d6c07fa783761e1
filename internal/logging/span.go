package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one pipeline stage, such as a pose extraction or a retarget run. Its logger
// carries the trace and span ids so every record of the stage can be correlated.
type Span struct {
	logger *slog.Logger
	start  time.Time
}

// StartSpan opens a span under ctx. A trace id is minted when ctx has none yet.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent := TraceFromContext(ctx)
	logger := FromContext(ctx)

	traceID := parent.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
		logger = logger.With(slog.String("trace_id", traceID))
	}
	spanID := uuid.NewString()

	attrs := []any{slog.String("span_id", spanID), slog.String("span_name", name)}
	if parent.SpanID != "" {
		attrs = append(attrs, slog.String("parent_span_id", parent.SpanID))
	}
	logger = logger.With(attrs...)

	ctx = withTrace(ctx, func(t *Trace) {
		t.TraceID = traceID
		t.SpanID = spanID
	})
	ctx = WithLogger(ctx, logger)
	return ctx, &Span{logger: logger, start: time.Now()}
}

// End logs the span as completed.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.logger.Info("span completed", slog.Duration("duration", time.Since(s.start)))
}

// Fail logs the span as failed with err. Call it instead of End.
func (s *Span) Fail(err error) {
	if s == nil {
		return
	}
	s.logger.Error("span failed", slog.Duration("duration", time.Since(s.start)), slog.Any("error", err))
}

// Logger returns the span's enriched logger.
func (s *Span) Logger() *slog.Logger {
	if s == nil {
		return slog.Default()
	}
	return s.logger
}
