package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/ehr/hospital/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// idleAfter is how long an unused caller limiter is kept.
const idleAfter = 10 * time.Minute

type callerLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type limiterStore struct {
	mu        sync.Mutex
	callers   map[string]*callerLimiter
	cfg       RateLimitConfig
	lastSweep time.Time
}

func newLimiterStore(cfg RateLimitConfig, now time.Time) *limiterStore {
	return &limiterStore{callers: make(map[string]*callerLimiter), cfg: cfg, lastSweep: now}
}

func (s *limiterStore) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > idleAfter {
		for k, c := range s.callers {
			if now.Sub(c.lastSeen) > idleAfter {
				delete(s.callers, k)
			}
		}
		s.lastSweep = now
	}

	c, ok := s.callers[key]
	if !ok {
		c = &callerLimiter{lim: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.BurstSize)}
		s.callers[key] = c
	}
	c.lastSeen = now
	return c.lim
}

// allow takes one token for key. When none is available it returns the
// whole seconds the caller should wait.
func (s *limiterStore) allow(key string, now time.Time) (bool, int) {
	r := s.get(key, now).ReserveN(now, 1)
	if !r.OK() {
		return false, 1
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, int(math.Ceil(delay.Seconds()))
}

// RateLimit throttles per caller: authenticated users by user id, anonymous
// requests by client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg, time.Now())
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if id, ok := auth.CurrentIdentity(c); ok {
				key = "user:" + id.UserID.String()
			}

			c.Response().Header().Set("X-RateLimit-Limit", limit)
			ok, retry := store.allow(key, time.Now())
			if !ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
