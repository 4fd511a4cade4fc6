package httpadapter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitOptions shapes the per-client token bucket on the resolve
// endpoint. Disabled when RequestsPerSecond is zero.
type RateLimitOptions struct {
	RequestsPerSecond float64
	Burst             int
}

type clientLimiter struct {
	options RateLimitOptions

	mu       sync.Mutex
	limiters map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(options RateLimitOptions) *clientLimiter {
	if options.Burst <= 0 {
		options.Burst = 5
	}
	return &clientLimiter{
		options:  options,
		limiters: make(map[string]*clientBucket),
	}
}

func (l *clientLimiter) middleware(next http.Handler) http.Handler {
	if l.options.RequestsPerSecond <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientKey(r)) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.limiters[key]
	if !ok {
		bucket = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(l.options.RequestsPerSecond), l.options.Burst),
		}
		l.limiters[key] = bucket
		l.dropIdleLocked()
	}
	bucket.lastSeen = time.Now()
	return bucket.limiter.Allow()
}

// dropIdleLocked prunes buckets idle for over an hour so the map stays
// bounded. Runs under the lock, amortized over new-client arrivals.
func (l *clientLimiter) dropIdleLocked() {
	cutoff := time.Now().Add(-time.Hour)
	for key, bucket := range l.limiters {
		if bucket.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
