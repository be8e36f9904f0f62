package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/metrics"
	"golang.org/x/time/rate"
)

// SourceRateLimiter manages rate limiters per event source
type SourceRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewSourceRateLimiter creates a new source rate limiter
func NewSourceRateLimiter(rps float64, burst int) *SourceRateLimiter {
	return &SourceRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// GetLimiter returns the rate limiter for a specific source
func (rl *SourceRateLimiter) GetLimiter(source string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[source]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		limiter, exists = rl.limiters[source]
		if !exists {
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.limiters[source] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// RateLimitMiddleware creates a rate limiting middleware. It expects
// SourceMiddleware to run first and falls back to the client IP otherwise.
func RateLimitMiddleware(rl *SourceRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		source, ok := GetSource(c)
		if !ok {
			source = c.ClientIP()
		}

		if !rl.GetLimiter(source).Allow() {
			metrics.RateLimitExceeded.WithLabelValues(source).Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
