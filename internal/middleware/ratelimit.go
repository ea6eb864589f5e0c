// Package middleware provides HTTP middleware for the signon Echo server.
// ratelimit.go guards the abuse-prone auth endpoints (login, password reset
// request) with a per-client fixed window counter.
package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mleach/signon/internal/apperror"
	"github.com/mleach/signon/internal/ratelimit"
)

// RateLimit returns middleware that allows at most limit requests per client
// IP within the window, counted separately per endpoint name. The counter is
// incremented before the handler runs, so attempts count whether or not they
// would have succeeded, and a blocked request never reaches the handler.
func RateLimit(limiter *ratelimit.Limiter, endpoint string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := endpoint + ":" + c.RealIP()

			allowed, err := limiter.Allow(c.Request().Context(), key, limit, window)
			if err != nil {
				return apperror.NewInternal(err)
			}
			if !allowed {
				return apperror.NewRateLimited()
			}

			return next(c)
		}
	}
}
