package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/mleach/signon/internal/config"
	"github.com/mleach/signon/internal/middleware"
	"github.com/mleach/signon/internal/ratelimit"
)

// RegisterRoutes sets up all auth-related routes on the given Echo instance.
//
// POST /session and POST /password-reset-request are rate limited to prevent
// brute-force and reset-spam. Each endpoint counts attempts independently:
// the endpoint name is part of the counter key, so hammering login does not
// consume the reset-request window and vice versa. The limiter runs before
// the handler, so blocked requests never reach the credential check.
func RegisterRoutes(e *echo.Echo, h *Handler, limiter *ratelimit.Limiter, rl config.RateLimitConfig) {
	e.POST("/session", h.Login,
		middleware.RateLimit(limiter, "session", rl.Limit, rl.Window))
	e.DELETE("/session", h.Logout)
	e.GET("/session", h.CurrentSession, RequireAuth(h.service))

	e.POST("/password-reset-request", h.RequestReset,
		middleware.RateLimit(limiter, "password-reset-request", rl.Limit, rl.Window))
	e.GET("/password-reset/:token", h.ResetForm)
	e.POST("/password-reset/:token", h.ResetUpdate)
}
