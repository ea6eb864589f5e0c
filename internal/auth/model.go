// Package auth implements email/password authentication for signon:
// credential validation, login/logout, and the token-based password reset
// flow. Sessions live in the session package; this package orchestrates them.
package auth

import (
	"time"
)

// User represents a registered account. This is the domain model used
// throughout the application. Database scanning and JSON marshaling use this
// struct directly.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose in JSON responses.
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// --- Request DTOs (bound from HTTP requests) ---

// LoginRequest holds the data submitted to POST /session.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ResetRequestRequest holds the data submitted to POST /password-reset-request.
type ResetRequestRequest struct {
	Email string `json:"email" form:"email"`
}

// ResetUpdateRequest holds the new password submitted to
// POST /password-reset/:token.
type ResetUpdateRequest struct {
	Password             string `json:"password" form:"password"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation"`
}
