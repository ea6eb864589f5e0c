package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mleach/signon/internal/apperror"
	"github.com/mleach/signon/internal/session"
)

// mockAuthService implements AuthService with overridable functions.
type mockAuthService struct {
	authenticateFn          func(ctx context.Context, email, password string, meta session.Metadata) (*User, string, error)
	resolveSessionFn        func(ctx context.Context, credential string) (*session.Session, error)
	logoutFn                func(ctx context.Context, credential string) error
	requestPasswordResetFn  func(ctx context.Context, email string) error
	validateResetTokenFn    func(ctx context.Context, token string) (*User, error)
	completePasswordResetFn func(ctx context.Context, token, password string) error
	createUserFn            func(ctx context.Context, email, password string) (*User, error)
	deleteUserFn            func(ctx context.Context, userID string) error
}

func (m *mockAuthService) Authenticate(ctx context.Context, email, password string, meta session.Metadata) (*User, string, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, email, password, meta)
	}
	return nil, "", apperror.NewUnauthorized(invalidCredentialsMessage)
}

func (m *mockAuthService) ResolveSession(ctx context.Context, credential string) (*session.Session, error) {
	if m.resolveSessionFn != nil {
		return m.resolveSessionFn(ctx, credential)
	}
	return nil, apperror.NewUnauthorized("session expired or invalid")
}

func (m *mockAuthService) Logout(ctx context.Context, credential string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, credential)
	}
	return nil
}

func (m *mockAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if m.requestPasswordResetFn != nil {
		return m.requestPasswordResetFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) ValidateResetToken(ctx context.Context, token string) (*User, error) {
	if m.validateResetTokenFn != nil {
		return m.validateResetTokenFn(ctx, token)
	}
	return nil, apperror.NewTokenInvalid()
}

func (m *mockAuthService) CompletePasswordReset(ctx context.Context, token, password string) error {
	if m.completePasswordResetFn != nil {
		return m.completePasswordResetFn(ctx, token, password)
	}
	return nil
}

func (m *mockAuthService) CreateUser(ctx context.Context, email, password string) (*User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) DeleteUser(ctx context.Context, userID string) error {
	if m.deleteUserFn != nil {
		return m.deleteUserFn(ctx, userID)
	}
	return nil
}

func newTestHandler(svc AuthService) *Handler {
	return NewHandler(svc, 3, int(720*time.Hour/time.Second))
}

func newFormContext(method, target string, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asAppError(t *testing.T, err error) *apperror.AppError {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got: %v", err)
	}
	return appErr
}

func TestLogin_Success(t *testing.T) {
	svc := &mockAuthService{
		authenticateFn: func(ctx context.Context, email, password string, meta session.Metadata) (*User, string, error) {
			if email != "test@test.com" || password != "password123" {
				t.Errorf("unexpected credentials: %q / %q", email, password)
			}
			return &User{ID: "u1", Email: email}, "cred.sig", nil
		},
	}
	h := newTestHandler(svc)

	c, rec := newFormContext(http.MethodPost, "/session", url.Values{
		"email":    {"test@test.com"},
		"password": {"password123"},
	})

	if err := h.Login(c); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	cookie := findCookie(rec, sessionCookieName)
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}
	if cookie.Value != "cred.sig" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "cred.sig")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Error("session cookie should be SameSite=Lax")
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if _, ok := body["user"]; !ok {
		t.Error("response should contain a user object")
	}
	if strings.Contains(rec.Body.String(), "password_hash") {
		t.Error("response must not expose the password hash")
	}
}

func TestLogin_NormalizesEmailBeforeValidation(t *testing.T) {
	var gotEmail string
	svc := &mockAuthService{
		authenticateFn: func(ctx context.Context, email, password string, meta session.Metadata) (*User, string, error) {
			gotEmail = email
			return &User{ID: "u1", Email: email}, "cred.sig", nil
		},
	}
	h := newTestHandler(svc)

	c, _ := newFormContext(http.MethodPost, "/session", url.Values{
		"email":    {" Test@Test.com "},
		"password": {"password123"},
	})

	if err := h.Login(c); err != nil {
		t.Fatalf("Login with unnormalized email failed: %v", err)
	}
	if gotEmail != "test@test.com" {
		t.Errorf("service received email %q, want %q", gotEmail, "test@test.com")
	}
}

func TestLogin_ValidationErrors(t *testing.T) {
	h := newTestHandler(&mockAuthService{})

	tests := []struct {
		name      string
		form      url.Values
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing email",
			form:      url.Values{"password": {"password123"}},
			wantField: "email",
			wantMsg:   "Enter an email address",
		},
		{
			name:      "malformed email",
			form:      url.Values{"email": {"nope"}, "password": {"password123"}},
			wantField: "email",
			wantMsg:   "Enter an email address in the correct format, like name@example.com",
		},
		{
			name:      "missing password",
			form:      url.Values{"email": {"test@test.com"}},
			wantField: "password",
			wantMsg:   "Enter a password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newFormContext(http.MethodPost, "/session", tt.form)
			appErr := asAppError(t, h.Login(c))
			if appErr.Code != http.StatusUnprocessableEntity {
				t.Errorf("code = %d, want 422", appErr.Code)
			}
			if appErr.Message != "There is a problem" {
				t.Errorf("message = %q", appErr.Message)
			}
			if appErr.Fields[tt.wantField] != tt.wantMsg {
				t.Errorf("field %q = %q, want %q", tt.wantField, appErr.Fields[tt.wantField], tt.wantMsg)
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newTestHandler(&mockAuthService{})

	c, rec := newFormContext(http.MethodPost, "/session", url.Values{
		"email":    {"test@test.com"},
		"password": {"wrong"},
	})

	appErr := asAppError(t, h.Login(c))
	if appErr.Code != http.StatusUnauthorized {
		t.Errorf("code = %d, want 401", appErr.Code)
	}
	if appErr.Message != invalidCredentialsMessage {
		t.Errorf("message = %q, want %q", appErr.Message, invalidCredentialsMessage)
	}
	if findCookie(rec, sessionCookieName) != nil {
		t.Error("no session cookie should be set on failed login")
	}
}

func TestLogout(t *testing.T) {
	var loggedOut string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, credential string) error {
			loggedOut = credential
			return nil
		},
	}
	h := newTestHandler(svc)

	c, rec := newFormContext(http.MethodDelete, "/session", nil)
	c.Request().AddCookie(&http.Cookie{Name: sessionCookieName, Value: "cred.sig"})

	if err := h.Logout(c); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if loggedOut != "cred.sig" {
		t.Errorf("service received credential %q", loggedOut)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	cookie := findCookie(rec, sessionCookieName)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("expected the session cookie to be cleared")
	}
}

func TestLogout_WithoutSession(t *testing.T) {
	called := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, credential string) error {
			called = true
			return nil
		},
	}
	h := newTestHandler(svc)

	c, rec := newFormContext(http.MethodDelete, "/session", nil)

	if err := h.Logout(c); err != nil {
		t.Fatalf("Logout without a cookie should succeed, got: %v", err)
	}
	if called {
		t.Error("service should not be called without a credential")
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestRequestReset_AlwaysGeneric(t *testing.T) {
	h := newTestHandler(&mockAuthService{})

	for _, email := range []string{"known@test.com", "unknown@test.com"} {
		c, rec := newFormContext(http.MethodPost, "/password-reset-request", url.Values{"email": {email}})
		if err := h.RequestReset(c); err != nil {
			t.Fatalf("RequestReset(%q) failed: %v", email, err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), resetRequestedMessage) {
			t.Errorf("body %q should contain the generic message", rec.Body.String())
		}
	}
}

func TestRequestReset_ValidatesEmail(t *testing.T) {
	h := newTestHandler(&mockAuthService{})

	c, _ := newFormContext(http.MethodPost, "/password-reset-request", url.Values{"email": {""}})
	appErr := asAppError(t, h.RequestReset(c))
	if appErr.Code != http.StatusUnprocessableEntity {
		t.Errorf("code = %d, want 422", appErr.Code)
	}
	if appErr.Fields["email"] != "Enter an email address" {
		t.Errorf("field email = %q", appErr.Fields["email"])
	}
}

func TestResetForm(t *testing.T) {
	svc := &mockAuthService{
		validateResetTokenFn: func(ctx context.Context, token string) (*User, error) {
			if token == "good-token" {
				return &User{ID: "u1", Email: "test@test.com"}, nil
			}
			return nil, apperror.NewTokenInvalid()
		},
	}
	h := newTestHandler(svc)

	c, rec := newFormContext(http.MethodGet, "/password-reset/good-token", nil)
	c.SetParamNames("token")
	c.SetParamValues("good-token")
	if err := h.ResetForm(c); err != nil {
		t.Fatalf("ResetForm failed: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "test@test.com") {
		t.Errorf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}

	c, _ = newFormContext(http.MethodGet, "/password-reset/bad-token", nil)
	c.SetParamNames("token")
	c.SetParamValues("bad-token")
	appErr := asAppError(t, h.ResetForm(c))
	if appErr.Message != "Password reset link is invalid or has expired." {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestResetUpdate_Success(t *testing.T) {
	var completedToken, completedPassword string
	svc := &mockAuthService{
		validateResetTokenFn: func(ctx context.Context, token string) (*User, error) {
			return &User{ID: "u1", Email: "test@test.com"}, nil
		},
		completePasswordResetFn: func(ctx context.Context, token, password string) error {
			completedToken, completedPassword = token, password
			return nil
		},
	}
	h := newTestHandler(svc)

	c, rec := newFormContext(http.MethodPost, "/password-reset/good-token", url.Values{
		"password":              {"new-password"},
		"password_confirmation": {"new-password"},
	})
	c.SetParamNames("token")
	c.SetParamValues("good-token")

	if err := h.ResetUpdate(c); err != nil {
		t.Fatalf("ResetUpdate failed: %v", err)
	}
	if completedToken != "good-token" || completedPassword != "new-password" {
		t.Errorf("service received token=%q password=%q", completedToken, completedPassword)
	}
	if !strings.Contains(rec.Body.String(), "Password has been reset.") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestResetUpdate_TokenCheckedBeforeFields(t *testing.T) {
	// A dead link with bad fields reads as a dead link, not a field error.
	h := newTestHandler(&mockAuthService{})

	c, _ := newFormContext(http.MethodPost, "/password-reset/bad-token", url.Values{
		"password":              {""},
		"password_confirmation": {""},
	})
	c.SetParamNames("token")
	c.SetParamValues("bad-token")

	appErr := asAppError(t, h.ResetUpdate(c))
	if appErr.Message != "Password reset link is invalid or has expired." {
		t.Errorf("message = %q", appErr.Message)
	}
	if len(appErr.Fields) != 0 {
		t.Errorf("unexpected field errors: %v", appErr.Fields)
	}
}

func TestResetUpdate_FieldValidation(t *testing.T) {
	svc := &mockAuthService{
		validateResetTokenFn: func(ctx context.Context, token string) (*User, error) {
			return &User{ID: "u1", Email: "test@test.com"}, nil
		},
	}
	h := newTestHandler(svc)

	tests := []struct {
		name      string
		form      url.Values
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing password",
			form:      url.Values{"password_confirmation": {"abc"}},
			wantField: "password",
			wantMsg:   "Enter a new password",
		},
		{
			name:      "too short",
			form:      url.Values{"password": {"ab"}, "password_confirmation": {"ab"}},
			wantField: "password",
			wantMsg:   "Password must be at least 3 characters",
		},
		{
			name:      "mismatch",
			form:      url.Values{"password": {"abc"}, "password_confirmation": {"abd"}},
			wantField: "password_confirmation",
			wantMsg:   "Passwords do not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newFormContext(http.MethodPost, "/password-reset/good-token", tt.form)
			c.SetParamNames("token")
			c.SetParamValues("good-token")

			appErr := asAppError(t, h.ResetUpdate(c))
			if appErr.Code != http.StatusUnprocessableEntity {
				t.Errorf("code = %d, want 422", appErr.Code)
			}
			if appErr.Fields[tt.wantField] != tt.wantMsg {
				t.Errorf("field %q = %q, want %q", tt.wantField, appErr.Fields[tt.wantField], tt.wantMsg)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	sess := &session.Session{UserID: "u1", Email: "test@test.com"}
	svc := &mockAuthService{
		resolveSessionFn: func(ctx context.Context, credential string) (*session.Session, error) {
			if credential == "cred.sig" {
				return sess, nil
			}
			return nil, apperror.NewUnauthorized("session expired or invalid")
		},
	}

	next := func(c echo.Context) error {
		if GetSession(c) != sess {
			t.Error("session should be available in the context")
		}
		if GetUserID(c) != "u1" {
			t.Errorf("GetUserID = %q, want %q", GetUserID(c), "u1")
		}
		return c.NoContent(http.StatusOK)
	}
	mw := RequireAuth(svc)(next)

	// Valid cookie passes through.
	c, rec := newFormContext(http.MethodGet, "/session", nil)
	c.Request().AddCookie(&http.Cookie{Name: sessionCookieName, Value: "cred.sig"})
	if err := mw(c); err != nil {
		t.Fatalf("request with valid session failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	// No cookie is a 401.
	c, _ = newFormContext(http.MethodGet, "/session", nil)
	appErr := asAppError(t, mw(c))
	if appErr.Code != http.StatusUnauthorized {
		t.Errorf("code = %d, want 401", appErr.Code)
	}

	// Dead session is a 401.
	c, _ = newFormContext(http.MethodGet, "/session", nil)
	c.Request().AddCookie(&http.Cookie{Name: sessionCookieName, Value: "stale.sig"})
	appErr = asAppError(t, mw(c))
	if appErr.Code != http.StatusUnauthorized {
		t.Errorf("code = %d, want 401", appErr.Code)
	}
}

// findCookie returns the named cookie from the recorded response, or nil.
func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
