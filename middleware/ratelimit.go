package middleware

import (
	"sync"

	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterPool keeps one token bucket per key.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &limiterPool{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// RateLimit rejects requests over rps per key with 429. key defaults to
// the authenticated user, falling back to the client IP.
func RateLimit(rps float64, burst int, key func(c *gin.Context) string) gin.HandlerFunc {
	pool := newLimiterPool(rps, burst)
	if key == nil {
		key = func(c *gin.Context) string {
			if uid := c.GetString(CtxUserIDKey); uid != "" {
				return "u:" + uid
			}
			return "ip:" + c.ClientIP()
		}
	}
	return func(c *gin.Context) {
		if !pool.Allow(key(c)) {
			Fail(c, errs.ErrRateLimit.WrapMsg("too many requests"))
			return
		}
		c.Next()
	}
}
