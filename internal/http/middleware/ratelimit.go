// Package middleware – in-memory token-bucket rate limiting.
//
// The limiter is process-local and keyed per client IP; there is no auth
// layer in front of this service, so the IP is the only stable identity.
// Idle buckets are evicted opportunistically to bound memory.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// bucketTTL is how long an idle bucket survives before eviction.
const bucketTTL = 10 * time.Minute

// gcEvery triggers a sweep of idle buckets after this many lookups.
const gcEvery = 5000

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-IP token bucket. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups int
}

// NewRateLimiter constructs a limiter replenishing rps tokens per second
// with the given burst size (coerced to at least 1).
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*bucket),
	}
}

// take fetches or creates the bucket for key and reports whether a token
// was available. The idle sweep runs before the fetch so a stale bucket
// for this very key can still be evicted and rebuilt fresh.
func (rl *RateLimiter) take(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	rl.lookups++
	if rl.lookups >= gcEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= bucketTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	lim := b.lim
	rl.mu.Unlock()

	return lim.Allow()
}

// Handler returns the Gin middleware. Rejected requests get a 429 with a
// compact JSON body and a minimal Retry-After hint.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.take("ip:" + c.ClientIP()) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
