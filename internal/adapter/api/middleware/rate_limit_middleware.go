package middleware

import (
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"chatcore/pkg/errors"
	"chatcore/pkg/response"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter caps REST traffic per client IP.
type IPRateLimiter struct {
	visitors map[string]*visitor
	mutex    sync.Mutex
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter allows requests per window with the full window as burst.
func NewIPRateLimiter(requests int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
	}
}

func (rl *IPRateLimiter) get(ip string, now time.Time) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *IPRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			now := time.Now()

			reservation := rl.get(ip, now).ReserveN(now, 1)
			if delay := reservation.DelayFrom(now); delay > 0 {
				reservation.CancelAt(now)
				log.Printf("RATE LIMIT: Blocked request from IP %s (retry in %v)", ip, delay)
				c.Response().Header().Set("Retry-After", formatSeconds(delay))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", nil))
			}
			return next(c)
		}
	}
}

// Cleanup drops visitors idle for longer than idle.
func (rl *IPRateLimiter) Cleanup(idle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := time.Now().Add(-idle)
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
