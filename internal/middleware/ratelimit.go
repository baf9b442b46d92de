package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const maxRateLimitEntries = 100000

// RateLimiter is a sliding-window limiter keyed by client IP.
type RateLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu    sync.Mutex
	store map[string][]time.Time
}

func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	return &RateLimiter{
		window: window,
		limit:  limit,
		now:    time.Now,
		store:  make(map[string][]time.Time),
	}
}

func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetIn := l.check(clientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   "Too many requests. Please slow down.",
				"resetIn": resetIn,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) check(ip string) (allowed bool, remaining int, resetIn int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	filtered := l.prune(l.store[ip], now)

	if len(filtered) >= l.limit {
		resetSec := int(filtered[0].Add(l.window).Sub(now).Seconds()) + 1
		l.store[ip] = filtered
		return false, 0, resetSec
	}

	if _, known := l.store[ip]; !known && len(l.store) >= maxRateLimitEntries {
		return false, 0, int(l.window.Seconds())
	}

	filtered = append(filtered, now)
	l.store[ip] = filtered
	return true, l.limit - len(filtered), 0
}

func (l *RateLimiter) prune(requests []time.Time, now time.Time) []time.Time {
	windowStart := now.Add(-l.window)
	filtered := requests[:0]
	for _, t := range requests {
		if t.After(windowStart) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// Sweep drops clients with no requests inside the window.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for ip, requests := range l.store {
		filtered := l.prune(requests, now)
		if len(filtered) == 0 {
			delete(l.store, ip)
		} else {
			l.store[ip] = filtered
		}
	}
}

// Run sweeps once per window until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
