package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "busreg.io/stager/internal/pkg/errors"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu    sync.Mutex
	ips   map[string]*limiterEntry
	rate  rate.Limit
	burst int
	ttl   time.Duration
}

// NewRateLimiter allows perMinute requests per IP with the given burst.
// Entries idle for longer than ttl are dropped by Janitor.
func NewRateLimiter(perMinute, burst int, ttl time.Duration) *RateLimiter {
	r := rate.Inf
	if perMinute > 0 {
		r = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimiter{
		ips:   make(map[string]*limiterEntry),
		rate:  r,
		burst: burst,
		ttl:   ttl,
	}
}

// Allow reports whether ip may make a request now.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	entry, ok := rl.ips[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.ips[ip] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()
	return entry.limiter.Allow()
}

// Sweep drops entries idle since before now-ttl.
func (rl *RateLimiter) Sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for ip, e := range rl.ips {
		if now.Sub(e.lastSeen) > rl.ttl {
			delete(rl.ips, ip)
			n++
		}
	}
	return n
}

// Janitor sweeps every ttl until ctx is done. It is meant to run on the
// background worker pool.
func (rl *RateLimiter) Janitor(ctx context.Context) {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.Sweep(now)
		}
	}
}

// RateLimit rejects requests over the limit with 429.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			_ = c.Error(apperrors.New(apperrors.CodeRateLimited, "Too many requests, please try again later", http.StatusTooManyRequests))
			c.Abort()
			return
		}
		c.Next()
	}
}
