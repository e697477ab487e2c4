package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_LimitsPerKey(t *testing.T) {
	rl := NewRateLimiter(0.5, 2, nil)
	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	ip1 := func() int {
		req := map[string]string{"X-Forwarded-For": "10.0.0.1"}
		return do(r, http.MethodGet, "/x", req).Code
	}
	if ip1() != http.StatusOK || ip1() != http.StatusOK {
		t.Fatal("burst should be allowed")
	}
	w := do(r, http.MethodGet, "/x", map[string]string{"X-Forwarded-For": "10.0.0.1"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "2" {
		t.Fatalf("Retry-After=%q", w.Header().Get("Retry-After"))
	}
	if body := decode(t, w); body["error"] != "rate_limited" {
		t.Fatalf("body %v", body)
	}

	// Another caller has its own bucket.
	if w := do(r, http.MethodGet, "/x", map[string]string{"X-Forwarded-For": "10.0.0.2"}); w.Code != http.StatusOK {
		t.Fatalf("other ip: %d", w.Code)
	}
}

func TestRateLimiter_KeysByUserAndBypassesReplays(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, KeyByUserOrIP())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(userIDKey, c.GetHeader("X-Test-User"))
		if c.GetHeader("X-Test-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}, rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	a := map[string]string{"X-Test-User": "a"}
	if do(r, http.MethodGet, "/x", a).Code != http.StatusOK {
		t.Fatal("first request")
	}
	if do(r, http.MethodGet, "/x", a).Code != http.StatusTooManyRequests {
		t.Fatal("second request should be limited")
	}
	if do(r, http.MethodGet, "/x", map[string]string{"X-Test-User": "b"}).Code != http.StatusOK {
		t.Fatal("user b has its own bucket")
	}
	if do(r, http.MethodGet, "/x", map[string]string{"X-Test-User": "a", "X-Test-Replay": "1"}).Code != http.StatusOK {
		t.Fatal("replays bypass the limiter")
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.limiter("old")

	now = now.Add(rl.ttl)
	rl.sweepN = 4999
	rl.limiter("new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["old"]; ok {
		t.Fatal("idle bucket survived the sweep")
	}
	if _, ok := rl.visitors["new"]; !ok {
		t.Fatal("new bucket missing")
	}
}

func TestRetryAfter(t *testing.T) {
	if retryAfter(0) != 1 || retryAfter(10) != 1 || retryAfter(0.25) != 4 {
		t.Fatalf("retryAfter: %d %d %d", retryAfter(0), retryAfter(10), retryAfter(0.25))
	}
}
