package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter implements per-IP rate limiting for API endpoints
type RateLimiter struct {
	ipLimiters    map[string]*rate.Limiter
	ipMutex       sync.Mutex
	ipLimiterRate rate.Limit
	ipBurst       int
	cleanupTicker *time.Ticker
	done          chan struct{}
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	limiter := &RateLimiter{
		ipLimiters:    make(map[string]*rate.Limiter),
		ipLimiterRate: rate.Limit(requestsPerSecond),
		ipBurst:       burst,
		cleanupTicker: time.NewTicker(5 * time.Minute),
		done:          make(chan struct{}),
	}

	// Start cleanup goroutine
	go limiter.cleanup()

	return limiter
}

// cleanup periodically drops all limiters so the map does not grow forever
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.ipMutex.Lock()
			rl.ipLimiters = make(map[string]*rate.Limiter)
			rl.ipMutex.Unlock()
		case <-rl.done:
			return
		}
	}
}

// Stop stops the rate limiter cleanup
func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
	close(rl.done)
}

// getIPLimiter returns the rate limiter for an IP
func (rl *RateLimiter) getIPLimiter(ip string) *rate.Limiter {
	rl.ipMutex.Lock()
	defer rl.ipMutex.Unlock()

	limiter, exists := rl.ipLimiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.ipLimiterRate, rl.ipBurst)
		rl.ipLimiters[ip] = limiter
	}
	return limiter
}

// IPRateLimiterMiddleware limits requests based on IP address
func (rl *RateLimiter) IPRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.getIPLimiter(c.ClientIP())

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
