package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("requests within the limit pass", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute)

		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow("dealer-a"), "request %d should pass", i+1)
		}
	})

	t.Run("requests beyond the limit are blocked", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("dealer-a"))
		}
		assert.False(t, limiter.Allow("dealer-a"))
	})

	t.Run("dealers are counted independently", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute)

		assert.True(t, limiter.Allow("dealer-a"))
		assert.True(t, limiter.Allow("dealer-a"))
		assert.False(t, limiter.Allow("dealer-a"))

		assert.True(t, limiter.Allow("dealer-b"))
		assert.True(t, limiter.Allow("dealer-b"))
	})

	t.Run("a fresh window resets the count", func(t *testing.T) {
		limiter := NewRateLimiter(2, 50*time.Millisecond)

		assert.True(t, limiter.Allow("dealer-a"))
		assert.True(t, limiter.Allow("dealer-a"))
		assert.False(t, limiter.Allow("dealer-a"))

		time.Sleep(60 * time.Millisecond)

		assert.True(t, limiter.Allow("dealer-a"))
	})

	t.Run("remaining tracks the window", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute)

		assert.Equal(t, 5, limiter.Remaining("dealer-a"))

		limiter.Allow("dealer-a")
		limiter.Allow("dealer-a")

		assert.Equal(t, 3, limiter.Remaining("dealer-a"))
	})

	t.Run("concurrent callers never exceed the limit", func(t *testing.T) {
		limiter := NewRateLimiter(100, time.Minute)
		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0

		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("dealer-a") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}

		wg.Wait()
		assert.Equal(t, 100, allowed)
	})
}

func newRateLimitedRouter(limiter *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/api/v1/deals", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("serves requests and reports the budget", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute)
		router := newRateLimitedRouter(limiter)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("responds 429 once the window is spent", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute)
		router := newRateLimitedRouter(limiter)

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	})

	t.Run("one dealer cannot spend another dealer's budget", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		router := newRateLimitedRouter(limiter)

		dealerA := uuid.New().String()
		dealerB := uuid.New().String()

		req1 := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		req1.Header.Set(TenantHeaderKey, dealerA)
		w1 := httptest.NewRecorder()
		router.ServeHTTP(w1, req1)
		assert.Equal(t, http.StatusOK, w1.Code)

		req2 := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		req2.Header.Set(TenantHeaderKey, dealerA)
		w2 := httptest.NewRecorder()
		router.ServeHTTP(w2, req2)
		assert.Equal(t, http.StatusTooManyRequests, w2.Code)

		req3 := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		req3.Header.Set(TenantHeaderKey, dealerB)
		w3 := httptest.NewRecorder()
		router.ServeHTTP(w3, req3)
		assert.Equal(t, http.StatusOK, w3.Code)
	})

	t.Run("resolved dealer context keys the limiter", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		dealerID := uuid.New().String()

		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set(TenantIDKey, dealerID)
			c.Next()
		})
		router.Use(RateLimit(limiter))
		router.GET("/api/v1/deals", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		req1 := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		w1 := httptest.NewRecorder()
		router.ServeHTTP(w1, req1)
		assert.Equal(t, http.StatusOK, w1.Code)

		req2 := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		w2 := httptest.NewRecorder()
		router.ServeHTTP(w2, req2)
		assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	})
}
