package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ndrwrbgs/flowtrace/internal/bridge"
	"github.com/ndrwrbgs/flowtrace/internal/event"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// PerClient keeps one bucket per client IP instead of a shared one.
	PerClient bool
}

// DefaultRateLimitConfig allows one request per second with a burst of two.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             2,
	}
}

// RateLimit rejects requests over the configured rate with 429. When h is
// set, each rejection is logged as a warning in the request's flow, so it
// shows up under the request span opened by the tracing middleware.
func RateLimit(cfg RateLimitConfig, h bridge.Handler) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		shared  = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		clients = make(map[string]*rate.Limiter)
	)

	limiterFor := func(ip string) *rate.Limiter {
		if !cfg.PerClient {
			return shared
		}
		mu.Lock()
		defer mu.Unlock()
		l, ok := clients[ip]
		if !ok {
			l = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
			clients[ip] = l
		}
		return l
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if limiterFor(ip).Allow() {
			c.Next()
			return
		}

		if h != nil {
			// The request may not be traced; nothing to report to then.
			_ = h.Log(c.Request.Context(),
				event.F(event.KeyEvent, "rate limit exceeded"),
				event.F(event.KeyLevel, event.LevelWarning),
				event.F("client", ip))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded",
		})
	}
}
