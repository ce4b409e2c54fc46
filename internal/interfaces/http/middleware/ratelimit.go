package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window request counter held in memory. Keys
// combine dealer and client address so one busy dealership cannot
// starve the others.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*requestWindow
	limit   int
	span    time.Duration
}

type requestWindow struct {
	used      int
	startedAt time.Time
}

// NewRateLimiter allows limit requests per span for each key.
func NewRateLimiter(limit int, span time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*requestWindow),
		limit:   limit,
		span:    span,
	}
	go rl.evictStale()
	return rl
}

func (rl *RateLimiter) evictStale() {
	ticker := time.NewTicker(rl.span * 2)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-2 * rl.span)
		for key, w := range rl.windows {
			if w.startedAt.Before(cutoff) {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow records a request against key and reports whether it fits in
// the current window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.startedAt) >= rl.span {
		rl.windows[key] = &requestWindow{used: 1, startedAt: now}
		return true
	}

	if w.used < rl.limit {
		w.used++
		return true
	}
	return false
}

// Remaining reports how many requests key has left in its window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || time.Since(w.startedAt) >= rl.span {
		return rl.limit
	}
	return rl.limit - w.used
}

// RateLimit throttles requests per dealer and client address. The
// dealer comes from the resolved context when the tenant middleware
// has already run, with the X-Tenant-ID header as a fallback for
// traffic rejected before resolution.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if dealerID := GetTenantID(c); dealerID != "" {
			key = dealerID + ":" + key
		} else if headerID := c.GetHeader(TenantHeaderKey); headerID != "" {
			key = headerID + ":" + key
		}

		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Please try again later.",
				},
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))

		c.Next()
	}
}
