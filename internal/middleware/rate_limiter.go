package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

// KeyedLimiter keeps a token bucket per key (a scope plus client IP) and forgets keys idle
// for longer than its ttl.
type KeyedLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewIPRateLimiter allows up to requests events per window per key, with burst extra
// capacity. requests <= 0 disables limiting.
func NewIPRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration) *KeyedLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	limit := rate.Inf
	if requests > 0 {
		limit = rate.Every(window / time.Duration(requests))
	}
	return &KeyedLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow consumes one token for key.
func (l *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	if now.Sub(l.lastSweep) >= l.ttl {
		l.sweepLocked(now)
	}
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Len reports how many keys are tracked.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *KeyedLimiter) sweepLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
	l.lastSweep = now
}

// WithNowFunc allows tests to override the time source.
func (l *KeyedLimiter) WithNowFunc(now func() time.Time) *KeyedLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	return l
}

var _ RateLimiter = (*KeyedLimiter)(nil)
