package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Entry is one log record retained for the admin log view.
type Entry struct {
	ID        int64
	Time      time.Time
	Level     string
	Message   string
	Service   string
	RequestID string
}

// Query filters retained entries. Empty fields match everything.
type Query struct {
	Service string
	Level   string
	Limit   int
}

// Buffer keeps the most recent log records in a fixed size ring.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
	seq     int64
}

// NewBuffer returns a ring holding up to size entries.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 500
	}
	return &Buffer{entries: make([]Entry, size)}
}

// Handler tees every record handled by next into the buffer.
func (b *Buffer) Handler(next slog.Handler) slog.Handler {
	return &bufferHandler{buf: b, next: next}
}

// Recent returns matching entries, newest first.
func (b *Buffer) Recent(q Query) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := b.next
	if b.full {
		count = len(b.entries)
	}

	var out []Entry
	for i := 0; i < count; i++ {
		idx := (b.next - 1 - i + len(b.entries)) % len(b.entries)
		e := b.entries[idx]
		if q.Service != "" && !strings.EqualFold(q.Service, e.Service) {
			continue
		}
		if q.Level != "" && !strings.EqualFold(q.Level, e.Level) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

func (b *Buffer) add(e Entry) {
	b.mu.Lock()
	b.seq++
	e.ID = b.seq
	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

// LevelName maps slog levels onto the names shown to admins.
func LevelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warning"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

type bufferHandler struct {
	buf       *Buffer
	next      slog.Handler
	service   string
	requestID string
	grouped   bool
}

func (h *bufferHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *bufferHandler) Handle(ctx context.Context, r slog.Record) error {
	service, requestID := h.service, h.requestID
	if !h.grouped {
		r.Attrs(func(a slog.Attr) bool {
			switch a.Key {
			case "service":
				service = a.Value.String()
			case "request_id":
				requestID = a.Value.String()
			}
			return true
		})
	}
	if service == "" {
		service = ServiceSystem
	}

	h.buf.add(Entry{
		Time:      r.Time,
		Level:     LevelName(r.Level),
		Message:   r.Message,
		Service:   service,
		RequestID: requestID,
	})

	return h.next.Handle(ctx, r)
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	if !h.grouped {
		for _, a := range attrs {
			switch a.Key {
			case "service":
				clone.service = a.Value.String()
			case "request_id":
				clone.requestID = a.Value.String()
			}
		}
	}
	return &clone
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.grouped = true
	return &clone
}
