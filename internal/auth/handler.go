package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mleach/signon/internal/apperror"
	"github.com/mleach/signon/internal/session"
)

// sessionCookieName is the HTTP cookie used to store the signed session
// credential.
const sessionCookieName = "signon_session"

// Handler handles HTTP requests for authentication (login, logout, password
// reset). Handlers are thin: they bind the request, validate field shape,
// call the service, and render the response. No business logic lives here.
type Handler struct {
	service           AuthService
	minPasswordLength int
	sessionMaxAge     int
}

// NewHandler creates a new auth handler with the given service.
// sessionMaxAge is the cookie lifetime in seconds.
func NewHandler(service AuthService, minPasswordLength, sessionMaxAge int) *Handler {
	return &Handler{
		service:           service,
		minPasswordLength: minPasswordLength,
		sessionMaxAge:     sessionMaxAge,
	}
}

// Login processes a login submission (POST /session). Field validation
// errors are field-specific; a failed credential check is always the same
// generic 401 regardless of which part was wrong.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	email := NormalizeEmail(req.Email)
	if errs := ValidateLogin(email, req.Password); len(errs) > 0 {
		return apperror.NewValidation(errs)
	}

	meta := session.Metadata{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}

	user, credential, err := h.service.Authenticate(c.Request().Context(), email, req.Password, meta)
	if err != nil {
		return err
	}

	h.setSessionCookie(c, credential)

	return c.JSON(http.StatusCreated, map[string]any{"user": user})
}

// Logout destroys the session and clears the cookie (DELETE /session).
// Idempotent: logging out twice, or with no session at all, succeeds.
func (h *Handler) Logout(c echo.Context) error {
	if credential := getSessionCredential(c); credential != "" {
		if err := h.service.Logout(c.Request().Context(), credential); err != nil {
			return err
		}
	}

	h.clearSessionCookie(c)

	return c.Redirect(http.StatusSeeOther, "/")
}

// CurrentSession returns the authenticated session (GET /session). Routed
// behind RequireAuth, which populates the context.
func (h *Handler) CurrentSession(c echo.Context) error {
	sess := GetSession(c)
	if sess == nil {
		return apperror.NewUnauthorized("authentication required")
	}
	return c.JSON(http.StatusOK, sess)
}

// RequestReset processes a password reset request (POST /password-reset-request).
// The response is identical whether or not the email matched an account.
func (h *Handler) RequestReset(c echo.Context) error {
	var req ResetRequestRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	email := NormalizeEmail(req.Email)
	if errs := ValidateResetRequest(email); len(errs) > 0 {
		return apperror.NewValidation(errs)
	}

	if err := h.service.RequestPasswordReset(c.Request().Context(), email); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"message": resetRequestedMessage})
}

// ResetForm verifies a presented reset token (GET /password-reset/:token)
// so the client can show the new-password form, or the generic invalid-link
// message.
func (h *Handler) ResetForm(c echo.Context) error {
	user, err := h.service.ValidateResetToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"email": user.Email})
}

// ResetUpdate sets the new password (POST /password-reset/:token). The token
// is checked before the password fields, as the edit flow does: a dead link
// reads as a dead link even when the submitted passwords are also wrong.
func (h *Handler) ResetUpdate(c echo.Context) error {
	var req ResetUpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	ctx := c.Request().Context()
	token := c.Param("token")

	if _, err := h.service.ValidateResetToken(ctx, token); err != nil {
		return err
	}

	if errs := ValidateNewPassword(req.Password, req.PasswordConfirmation, h.minPasswordLength); len(errs) > 0 {
		return apperror.NewValidation(errs)
	}

	if err := h.service.CompletePasswordReset(ctx, token, req.Password); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Password has been reset."})
}

// --- Cookie helpers ---

// getSessionCredential reads the signed session credential from the cookie.
func getSessionCredential(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// setSessionCookie sets the session cookie on the response. The cookie is
// HttpOnly (JS can't read it), Secure behind TLS, and SameSite=Lax.
func (h *Handler) setSessionCookie(c echo.Context, credential string) {
	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    credential,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   h.sessionMaxAge,
	})
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func (h *Handler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
