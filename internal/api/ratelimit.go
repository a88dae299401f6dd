package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vendmart/server/internal/apperrors"
	"github.com/vendmart/server/internal/models"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client entry may sit unused before it is
// evicted; an evicted client simply starts over with a full bucket.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters tracks one token bucket per client IP.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func (cl *clientLimiters) get(key string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	cl.evictIdle(now)

	entry, ok := cl.limiters[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// evictIdle drops entries not seen within limiterIdleTTL. Called under mu.
func (cl *clientLimiters) evictIdle(now time.Time) {
	for key, entry := range cl.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(cl.limiters, key)
		}
	}
}

// RateLimitMiddleware throttles sensitive endpoints (login) per client IP.
func RateLimitMiddleware(limit rate.Limit, burst int) gin.HandlerFunc {
	limiters := &clientLimiters{
		limiters: make(map[string]*clientLimiter),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
				Errors: []string{apperrors.CodeTooManyRequests},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
