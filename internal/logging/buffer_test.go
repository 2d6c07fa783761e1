package logging

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestBufferCapturesServiceAndLevel(t *testing.T) {
	buf := NewBuffer(10)
	logger := slog.New(buf.Handler(slog.NewJSONHandler(io.Discard, nil)))

	logger.Info("boot")
	logger.With(slog.String("service", ServiceAuth)).Warn("bad password")
	logger.Error("upload failed", "service", ServiceProcessor)

	all := buf.Recent(Query{})
	if len(all) != 3 {
		t.Fatalf("expected 3 entries got %d", len(all))
	}
	if all[0].Message != "upload failed" || all[0].Service != ServiceProcessor || all[0].Level != "error" {
		t.Fatalf("unexpected newest entry %+v", all[0])
	}
	if all[2].Service != ServiceSystem {
		t.Fatalf("expected default service got %q", all[2].Service)
	}

	auth := buf.Recent(Query{Service: ServiceAuth})
	if len(auth) != 1 || auth[0].Level != "warning" {
		t.Fatalf("unexpected auth entries %+v", auth)
	}
}

func TestBufferWrapsAndLimits(t *testing.T) {
	buf := NewBuffer(3)
	logger := slog.New(buf.Handler(slog.NewTextHandler(io.Discard, nil)))

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		logger.Info(msg)
	}

	got := buf.Recent(Query{})
	if len(got) != 3 || got[0].Message != "e" || got[2].Message != "c" {
		t.Fatalf("unexpected ring contents %+v", got)
	}
	if got[0].ID != 5 {
		t.Fatalf("expected sequence id 5 got %d", got[0].ID)
	}

	limited := buf.Recent(Query{Limit: 1})
	if len(limited) != 1 || limited[0].Message != "e" {
		t.Fatalf("unexpected limited entries %+v", limited)
	}
}

func TestWithServiceTagsContextLogger(t *testing.T) {
	buf := NewBuffer(5)
	base := slog.New(buf.Handler(slog.NewTextHandler(io.Discard, nil)))

	ctx := WithLogger(context.Background(), base)
	ctx = WithService(ctx, ServiceDatabase)
	FromContext(ctx).Info("migrated")

	got := buf.Recent(Query{Service: ServiceDatabase})
	if len(got) != 1 {
		t.Fatalf("expected tagged entry got %+v", buf.Recent(Query{}))
	}
}

func TestNestedSpansShareTrace(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")

	outerCtx, outer := StartSpan(ctx, "pose.process")
	outerTrace := TraceFromContext(outerCtx)
	innerCtx, inner := StartSpan(outerCtx, "pose.extract")
	innerTrace := TraceFromContext(innerCtx)
	inner.End()
	outer.End()

	if outerTrace.TraceID == "" || outerTrace.SpanID == "" {
		t.Fatalf("expected ids on outer span, got %+v", outerTrace)
	}
	if innerTrace.TraceID != outerTrace.TraceID {
		t.Fatalf("expected shared trace id, got %q and %q", outerTrace.TraceID, innerTrace.TraceID)
	}
	if innerTrace.SpanID == outerTrace.SpanID {
		t.Fatalf("expected a new span id for the inner span")
	}
	if innerTrace.RequestID != "req-1" || RequestIDFromContext(innerCtx) != "req-1" {
		t.Fatalf("expected request id to survive spans, got %+v", innerTrace)
	}
}
