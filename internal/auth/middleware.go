package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/mleach/signon/internal/apperror"
	"github.com/mleach/signon/internal/session"
)

// Context keys for storing session data in Echo context.
const (
	contextKeySession = "auth_session"
	contextKeyUserID  = "auth_user_id"
)

// RequireAuth returns middleware that validates the session cookie and
// injects session data into the request context. Requests without a live
// session get a 401.
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			credential := getSessionCredential(c)
			if credential == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			sess, err := service.ResolveSession(c.Request().Context(), credential)
			if err != nil {
				return err
			}

			// Store session data in context for downstream handlers.
			c.Set(contextKeySession, sess)
			c.Set(contextKeyUserID, sess.UserID)

			return next(c)
		}
	}
}

// GetSession retrieves the authenticated session from the Echo context.
// Returns nil if the request is not authenticated (middleware not applied).
func GetSession(c echo.Context) *session.Session {
	sess, ok := c.Get(contextKeySession).(*session.Session)
	if !ok {
		return nil
	}
	return sess
}

// GetUserID retrieves the authenticated user's ID from the Echo context.
// Returns empty string if the request is not authenticated.
func GetUserID(c echo.Context) string {
	id, ok := c.Get(contextKeyUserID).(string)
	if !ok {
		return ""
	}
	return id
}
