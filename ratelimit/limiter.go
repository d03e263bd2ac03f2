// Package ratelimit throttles API callers with one token bucket per key.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/time/rate"
)

const defaultIdleTTL = 10 * time.Minute

type ThrottledError struct {
	Key        string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: key %q throttled for %s", strings.TrimSpace(e.Key), e.RetryAfter)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New("rate limit exceeded", goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ErrorRateLimited).
		WithMetadata(metadata)
}

// RetryAfterSeconds rounds the wait up for the Retry-After header.
func (e ThrottledError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps a token bucket per caller key and forgets keys that
// have been idle for longer than the TTL.
type KeyedLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
}

type Option func(*KeyedLimiter)

func WithIdleTTL(ttl time.Duration) Option {
	return func(l *KeyedLimiter) {
		if ttl > 0 {
			l.idleTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *KeyedLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewKeyedLimiter allows rps requests per second with the given burst. A
// non-positive rps disables limiting.
func NewKeyedLimiter(rps float64, burst int, opts ...Option) *KeyedLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	l := &KeyedLimiter{
		limit:   limit,
		burst:   burst,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
		entries: map[string]*entry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func NewKeyedLimiterFromConfig(cfg core.HTTPConfig, opts ...Option) *KeyedLimiter {
	return NewKeyedLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, opts...)
}

// Allow consumes one token for key or returns a ThrottledError.
func (l *KeyedLimiter) Allow(_ context.Context, key string) error {
	if l == nil || l.limit == rate.Inf {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.now()

	l.mu.Lock()
	l.sweepLocked(now)
	current, ok := l.entries[key]
	if !ok {
		current = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = current
	}
	current.lastSeen = now
	reservation := current.limiter.ReserveN(now, 1)
	l.mu.Unlock()

	if !reservation.OK() {
		return ThrottledError{Key: key, RetryAfter: time.Second}
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return ThrottledError{Key: key, RetryAfter: delay}
	}
	return nil
}

// Len reports how many keys are currently tracked.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *KeyedLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL/2 {
		return
	}
	l.lastSweep = now
	for key, current := range l.entries {
		if now.Sub(current.lastSeen) > l.idleTTL {
			delete(l.entries, key)
		}
	}
}
