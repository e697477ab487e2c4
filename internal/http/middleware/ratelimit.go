// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-process token-bucket rate limiter keyed by
// caller (user id when authenticated, client IP otherwise). Idle buckets are
// evicted opportunistically. Idempotent replays skip limiting.
//
// The limiter is per process; a horizontally scaled deployment needs a
// shared limiter in front of it.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc selects the bucket a request draws from.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys by "user:<id>" when authenticated, else "ip:<addr>".
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	sweepN   uint64
	now      func() time.Time
}

// NewRateLimiter builds a limiter refilling rps tokens per second with the
// given burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

// limiter returns the bucket for key. Every 5000 lookups it first drops
// buckets idle for at least the TTL, including possibly this key's.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sweepN++
	if rl.sweepN >= 5000 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.sweepN = 0
	}
	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether Idempotency marked this request as a replay.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyRateBypass).(bool)
	return b
}

// Handler enforces the limit, replying 429 with a Retry-After estimate.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		lim := rl.limiter(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(rl.rps)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": GetRequestID(c),
			"error":      "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter is the whole seconds until one token is back, at least 1.
func retryAfter(rps rate.Limit) int {
	if rps <= 0 || math.IsInf(float64(rps), 1) {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(rps))))
}
