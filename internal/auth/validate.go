package auth

import (
	"fmt"
	"regexp"
	"strings"
)

// emailPattern is the mailto-style address shape: printable local part, @,
// and dot-separated domain labels. Deliberately permissive -- the point is
// catching obviously malformed input, not RFC 5321 enforcement.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// NormalizeEmail trims whitespace and lowercases an email address. Every
// email is normalized this way before validation, lookup, and storage, so
// " Test@Test.com " and "test@test.com" are the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateEmail checks a normalized email address. Returns a field message,
// or empty string if the address is acceptable.
func validateEmail(email string) string {
	if email == "" {
		return "Enter an email address"
	}
	if !emailPattern.MatchString(email) {
		return "Enter an email address in the correct format, like name@example.com"
	}
	return ""
}

// ValidateLogin checks the login form fields. Returns a map of field name to
// message; an empty map means the input is well-formed. These are shape
// checks only -- they run before any lookup, and their messages are
// field-specific because malformed input carries no enumeration risk.
func ValidateLogin(email, password string) map[string]string {
	errs := make(map[string]string)
	if msg := validateEmail(email); msg != "" {
		errs["email"] = msg
	}
	if password == "" {
		errs["password"] = "Enter a password"
	}
	return errs
}

// ValidateResetRequest checks the email field on a password reset request.
func ValidateResetRequest(email string) map[string]string {
	errs := make(map[string]string)
	if msg := validateEmail(email); msg != "" {
		errs["email"] = msg
	}
	return errs
}

// ValidateNewPassword checks the new password and its confirmation against
// the configured minimum length. The confirmation mismatch message is only
// reported when the password itself is present, matching the original
// behavior of re-prompting one problem at a time per field.
func ValidateNewPassword(password, confirmation string, minLength int) map[string]string {
	errs := make(map[string]string)

	if password == "" {
		errs["password"] = "Enter a new password"
	} else if len(password) < minLength {
		errs["password"] = fmt.Sprintf("Password must be at least %d characters", minLength)
	}

	if confirmation == "" {
		errs["password_confirmation"] = "Confirm your new password"
	} else if password != "" && password != confirmation {
		errs["password_confirmation"] = "Passwords do not match"
	}

	return errs
}
