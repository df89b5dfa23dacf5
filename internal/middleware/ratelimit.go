package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// MsgRateLimited is the error text returned to throttled callers.
const MsgRateLimited = "rate limit exceeded"

// RateLimiter implements a sliding-window limiter keyed by caller.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window and
// starts a goroutine that evicts idle keys until ctx is canceled.
func NewRateLimiter(ctx context.Context, limit int, window time.Duration) *RateLimiter {
	return newRateLimiter(ctx, limit, window, time.Now)
}

func newRateLimiter(ctx context.Context, limit int, window time.Duration, now func() time.Time) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      now,
	}
	go rl.evict(ctx)
	return rl
}

// Allow records a request for key and reports whether it is within the limit.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	recent := r.fresh(r.requests[key], r.now().Add(-r.window))
	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}
	r.requests[key] = append(recent, r.now())
	return true
}

func (r *RateLimiter) fresh(times []time.Time, cutoff time.Time) []time.Time {
	var out []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (r *RateLimiter) evict(ctx context.Context) {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		r.mu.Lock()
		cutoff := r.now().Add(-r.window)
		for key, times := range r.requests {
			if recent := r.fresh(times, cutoff); len(recent) == 0 {
				delete(r.requests, key)
			} else {
				r.requests[key] = recent
			}
		}
		r.mu.Unlock()
	}
}

func (r *RateLimiter) keys() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// RateLimit rejects requests over the limit with 429. keyFn selects the caller.
func RateLimit(rl *RateLimiter, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(keyFn(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"` + MsgRateLimited + `"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
