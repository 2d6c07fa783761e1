package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/motionlab/backend/internal/auth"
)

// RateLimiter admits or rejects one request for key.
type RateLimiter interface {
	Allow(key string) bool
}

const retryAfterSeconds = "60"

// throttled answers 429 and returns true when limiter rejects the request. Signed-in
// callers are keyed by account, anonymous ones by client address.
func throttled(w http.ResponseWriter, r *http.Request, limiter RateLimiter, scope, message string) bool {
	if limiter == nil || limiter.Allow(scope+":"+callerKey(r)) {
		return false
	}
	if message == "" {
		message = "Too many requests, try again later"
	}
	w.Header().Set("Retry-After", retryAfterSeconds)
	respondMessage(r.Context(), w, http.StatusTooManyRequests, message)
	return true
}

func callerKey(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return "user:" + p.UserID
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
