package middleware

import (
	"net/http"
	"sync"

	"github.com/fooforms/fooforms/backend/go-services/pkg/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// memoryLimiter keeps one token bucket per client key.
type memoryLimiter struct {
	rps   float64
	burst int
	store sync.Map // map[string]*rate.Limiter
}

func (m *memoryLimiter) get(key string) *rate.Limiter {
	if v, ok := m.store.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := m.store.LoadOrStore(key, rate.NewLimiter(rate.Limit(m.rps), m.burst))
	return v.(*rate.Limiter)
}

// clientKey prefers the authenticated subject and falls back to client IP.
func clientKey(c *gin.Context) string {
	if sub := Subject(c); sub != "" {
		return "sub:" + sub
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware enforces an in-process token bucket per client key.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	lim := &memoryLimiter{rps: rps, burst: burst}
	return func(c *gin.Context) {
		if !lim.get(clientKey(c)).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
