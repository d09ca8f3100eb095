// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter keyed by the
// authenticated user (or client IP for anonymous callers). Individual routes
// can carry a tighter budget of their own, which is how credential endpoints
// are protected. Replays flagged by IdempotencyValidator skip the limiter.
// Limits are per process.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"golang.org/x/time/rate"
)

// KeyFunc selects the identity used to key a rate-limit bucket.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the user id set by Authenticate, falling
// back to the client IP ("user:12" vs "ip:203.0.113.7").
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(CtxUserID); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByIP keys buckets by client IP only. Login attempts use it so that a
// caller cannot dodge the budget by switching accounts.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// bucketSpec is the refill rate and size of one family of buckets.
type bucketSpec struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements per-key token buckets with optional per-route
// overrides. It is safe for concurrent use.
type RateLimiter struct {
	clock  clock.Clock
	def    bucketSpec
	routes map[string]bucketSpec // "METHOD /full/path"

	mu       sync.Mutex
	visitors map[string]*visitor

	ttl     time.Duration
	lookups uint64
}

// NewRateLimiter builds a limiter granting rps tokens per second with room
// for burst (coerced to at least 1). A nil clk means the wall clock.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.WallClock
	}
	return &RateLimiter{
		clock:    clk,
		def:      newSpec(rps, burst, keyFn),
		routes:   map[string]bucketSpec{},
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

func newSpec(rps float64, burst int, keyFn KeyFunc) bucketSpec {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	return bucketSpec{rps: rate.Limit(rps), burst: burst, keyFn: keyFn}
}

// Route gives requests matching method and the registered route pattern
// their own buckets. Those requests do not consume default tokens.
func (rl *RateLimiter) Route(method, fullPath string, rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	rl.routes[method+" "+fullPath] = newSpec(rps, burst, keyFn)
	return rl
}

// spec returns the bucket family for the request and the bucket key.
func (rl *RateLimiter) spec(c *gin.Context) (bucketSpec, string) {
	route := c.Request.Method + " " + c.FullPath()
	if s, ok := rl.routes[route]; ok {
		return s, route + "|" + s.keyFn(c)
	}
	return rl.def, rl.def.keyFn(c)
}

// limiter returns the bucket for key, creating it from s when absent. Every
// 5000 lookups idle buckets are evicted.
func (rl *RateLimiter) limiter(key string, s bucketSpec, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= 5000 {
		rl.evict(now)
		rl.lookups = 0
	}
	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(s.rps, s.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// evict drops buckets idle for at least ttl. Callers hold mu.
func (rl *RateLimiter) evict(now time.Time) {
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= rl.ttl {
			delete(rl.visitors, k)
		}
	}
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay that should not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// retryAfter is the whole number of seconds until lim holds a token again,
// at least 1.
func retryAfter(lim *rate.Limiter, now time.Time) int {
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return 60
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Handler returns a Gin middleware that enforces the limits. Rejected
// requests get 429, a Retry-After header, and code "rate_limited".
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.clock.Now()
		s, key := rl.spec(c)
		lim := rl.limiter(key, s, now)
		if lim.AllowN(now, 1) {
			c.Next()
			return
		}

		LoggerFrom(c).Warn().Str("bucket", key).Msg("rate limited")
		c.Header("Retry-After", strconv.Itoa(retryAfter(lim, now)))
		c.Set(CtxErrorCode, "rate_limited")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
