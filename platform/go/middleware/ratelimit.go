package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/maison-mobility/maison-gate/platform/go/problem"
)

// RateLimitConfig sets the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// IdleTTL drops buckets of clients not seen for this long.
	IdleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP. chi's RealIP middleware should run first.
type RateLimiter struct {
	cfg        RateLimitConfig
	retryAfter int

	mu      sync.Mutex
	clients map[string]*limiterEntry
}

// NewRateLimiter constructs a RateLimiter.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	retryAfter := int(math.Ceil(1 / cfg.RequestsPerSecond))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return &RateLimiter{cfg: cfg, retryAfter: retryAfter, clients: make(map[string]*limiterEntry)}
}

// Middleware rejects requests over budget with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r), time.Now()) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter))
			problem.Write(w, problem.New(http.StatusTooManyRequests, "Too many requests", "rate limit exceeded", problem.TypeRateLimited))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run evicts idle clients until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.IdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

func (l *RateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.clients[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *RateLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, entry := range l.clients {
		if now.Sub(entry.lastSeen) > l.cfg.IdleTTL {
			delete(l.clients, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
