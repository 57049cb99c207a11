package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"instapro/internal/infrastructure/ratelimit"
	"instapro/pkg/errors"
	"instapro/pkg/logger"
	"instapro/pkg/response"
)

// RateLimit limits an authenticated route per caller. It must run after
// Authenticate.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, _ := c.Get(uidKey).(string)
			if uid == "" {
				uid = c.RealIP()
			}

			if ok, wait := limiter.Allow(uid, action); !ok {
				logger.Warn("RATE LIMIT: %s blocked on %s for %v", uid, action, wait)
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				return response.Error(c, errors.RateLimited(wait))
			}
			return next(c)
		}
	}
}
