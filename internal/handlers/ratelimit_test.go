package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/motionlab/backend/internal/auth"
)

type recordingLimiter struct {
	keys  []string
	allow bool
}

func (l *recordingLimiter) Allow(key string) bool {
	l.keys = append(l.keys, key)
	return l.allow
}

func TestThrottledKeysBySignedInUser(t *testing.T) {
	limiter := &recordingLimiter{allow: true}

	req := httptest.NewRequest(http.MethodPost, "/pose/process-video", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	if throttled(httptest.NewRecorder(), req, limiter, "upload", "") {
		t.Fatalf("expected anonymous request to pass")
	}

	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "user-1"}))
	if throttled(httptest.NewRecorder(), req, limiter, "upload", "") {
		t.Fatalf("expected signed-in request to pass")
	}

	want := []string{"upload:ip:10.0.0.7", "upload:user:user-1"}
	if len(limiter.keys) != len(want) {
		t.Fatalf("expected %d keys got %v", len(want), limiter.keys)
	}
	for i, key := range want {
		if limiter.keys[i] != key {
			t.Fatalf("key %d: expected %q got %q", i, key, limiter.keys[i])
		}
	}
}

func TestThrottledRejectsWithRetryAfter(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	limiter := &recordingLimiter{}
	rec := httptest.NewRecorder()

	if !throttled(rec, req, limiter, "login", "") {
		t.Fatalf("expected request to be throttled")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if limiter.keys[0] != "login:ip:203.0.113.9" {
		t.Fatalf("expected forwarded client address in key, got %q", limiter.keys[0])
	}
}
