package app

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mleach/signon/internal/auth"
	"github.com/mleach/signon/internal/mail"
	"github.com/mleach/signon/internal/ratelimit"
	"github.com/mleach/signon/internal/session"
)

// RegisterRoutes wires the auth service and registers all application
// routes. This is the single place where the dependency graph is assembled:
// repository -> service -> handler, plus the shared rate limiter.
func (a *App) RegisterRoutes() {
	e := a.Echo

	sessions := session.NewStore(a.Redis, a.Config.Auth.SessionTTL)
	codec := session.NewCodec(a.Config.Auth.SecretKey)
	sender := mail.NewSender(a.Config.Mail)

	repo := auth.NewUserRepository(a.DB)
	service := auth.NewAuthService(
		repo,
		sessions,
		codec,
		sender,
		a.Config.Auth.SecretKey,
		a.Config.Auth.ResetTokenTTL,
		a.Config.BaseURL,
	)

	handler := auth.NewHandler(
		service,
		a.Config.Auth.MinPasswordLength,
		int(a.Config.Auth.SessionTTL/time.Second),
	)

	limiter := ratelimit.NewLimiter(a.Redis)
	auth.RegisterRoutes(e, handler, limiter, a.Config.RateLimit)

	// Health check endpoint for container orchestration. Verifies both
	// backing stores, not just process liveness.
	e.GET("/healthz", func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := a.DB.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded", "database": err.Error(),
			})
		}
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded", "redis": err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
