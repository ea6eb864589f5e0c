package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mleach/signon/internal/apperror"
	"github.com/mleach/signon/internal/mail"
	"github.com/mleach/signon/internal/session"
)

// invalidCredentialsMessage is the single message for every failed login.
// Unknown email and wrong password are deliberately indistinguishable so
// responses cannot be used to enumerate accounts.
const invalidCredentialsMessage = "Enter a valid email address and password"

// resetRequestedMessage is returned for every password reset request,
// whether or not the email matched an account.
const resetRequestedMessage = "Password reset instructions sent (if user with that email address exists)."

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the repository or the
// session store directly.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string, meta session.Metadata) (user *User, credential string, err error)
	ResolveSession(ctx context.Context, credential string) (*session.Session, error)
	Logout(ctx context.Context, credential string) error

	RequestPasswordReset(ctx context.Context, email string) error
	ValidateResetToken(ctx context.Context, token string) (*User, error)
	CompletePasswordReset(ctx context.Context, token, password string) error

	CreateUser(ctx context.Context, email, password string) (*User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// authService implements AuthService with argon2id hashing, Redis sessions,
// and stateless signed reset tokens.
type authService struct {
	repo     UserRepository
	sessions *session.Store
	codec    *session.Codec
	mail     mail.Sender
	secret   []byte
	resetTTL time.Duration
	baseURL  string
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(repo UserRepository, sessions *session.Store, codec *session.Codec, sender mail.Sender, secret string, resetTTL time.Duration, baseURL string) AuthService {
	return &authService{
		repo:     repo,
		sessions: sessions,
		codec:    codec,
		mail:     sender,
		secret:   []byte(secret),
		resetTTL: resetTTL,
		baseURL:  baseURL,
	}
}

// dummyHash is a throwaway argon2id digest. The unknown-email branch of
// Authenticate verifies against it so both failure paths cost one argon2id
// computation and the response timing does not reveal whether the account
// exists.
var dummyHash = mustHash("signon-timing-equalizer")

func mustHash(password string) string {
	hash, err := HashPassword(password)
	if err != nil {
		panic(fmt.Sprintf("hashing dummy password: %v", err))
	}
	return hash
}

// Authenticate verifies an email/password pair and, on success, creates a
// session and returns its signed cookie credential. The email is normalized
// before lookup. Both failure branches return the same generic error.
func (s *authService) Authenticate(ctx context.Context, email, password string, meta session.Metadata) (*User, string, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			// Burn a verify so this branch is as slow as a real mismatch.
			VerifyPassword(password, dummyHash)
			return nil, "", apperror.NewUnauthorized(invalidCredentialsMessage)
		}
		return nil, "", apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, "", apperror.NewUnauthorized(invalidCredentialsMessage)
	}

	token, err := s.sessions.Create(ctx, user.ID, user.Email, meta)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	// Update the user's last login timestamp (fire-and-forget, non-critical).
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return user, s.codec.Encode(token), nil
}

// ResolveSession validates a signed cookie credential and returns the live
// session it references. Tampered credentials and destroyed or expired
// sessions all return the same unauthorized error.
func (s *authService) ResolveSession(ctx context.Context, credential string) (*session.Session, error) {
	token, ok := s.codec.Decode(credential)
	if !ok {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}

	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("resolving session: %w", err))
	}
	if sess == nil {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}

	return sess, nil
}

// Logout destroys the session referenced by the credential. Idempotent: an
// invalid credential or already-destroyed session is not an error.
func (s *authService) Logout(ctx context.Context, credential string) error {
	token, ok := s.codec.Decode(credential)
	if !ok {
		return nil
	}

	if err := s.sessions.Destroy(ctx, token); err != nil {
		return apperror.NewInternal(fmt.Errorf("destroying session: %w", err))
	}

	return nil
}

// RequestPasswordReset mints a reset token for the account matching email
// and delivers it out-of-band. When no account matches, it returns nil all
// the same -- the caller's response must be identical in both cases. Only
// infrastructure failures surface as errors.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			// Intentionally folded into the success path.
			slog.Debug("password reset requested for unknown email")
			return nil
		}
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	token, err := mintResetToken(s.secret, user, s.resetTTL)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("minting reset token: %w", err))
	}

	// Delivery is fire-and-forget: a mail failure is logged, never surfaced,
	// so response content and timing stay uniform.
	link := s.baseURL + "/password-reset/" + token
	body := fmt.Sprintf(
		"Someone requested a password reset for your account.\r\n\r\n"+
			"You can reset your password within the next %d minutes using this link:\r\n\r\n%s\r\n\r\n"+
			"If you did not request this, you can safely ignore this email.\r\n",
		int(s.resetTTL.Minutes()), link,
	)
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.mail.Send(sendCtx, user.Email, "Reset your password", body); err != nil {
			slog.Warn("failed to send password reset mail",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
		}
	}()

	slog.Info("password reset requested", slog.String("user_id", user.ID))

	return nil
}

// ValidateResetToken checks a presented reset token: signature valid, not
// expired, referenced user still exists, and the verifier still matches the
// user's current password hash. All four must pass; every failure maps to
// the same generic token-invalid error.
func (s *authService) ValidateResetToken(ctx context.Context, token string) (*User, error) {
	userID, verifier, err := parseResetToken(s.secret, token)
	if err != nil {
		return nil, apperror.NewTokenInvalid()
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NewTokenInvalid()
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if verifier != passwordVerifier(user.PasswordHash) {
		// Password changed since the token was minted; the token has no
		// further legitimate use.
		return nil, apperror.NewTokenInvalid()
	}

	return user, nil
}

// CompletePasswordReset updates the user's password and revokes every
// existing session. The session purge commits before this method returns --
// a client must not receive the success response while an old session could
// still resolve.
func (s *authService) CompletePasswordReset(ctx context.Context, token, password string) error {
	user, err := s.ValidateResetToken(ctx, token)
	if err != nil {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperror.NewInternal(fmt.Errorf("updating password: %w", err))
	}

	if err := s.sessions.DestroyAllForUser(ctx, user.ID); err != nil {
		return apperror.NewInternal(fmt.Errorf("revoking sessions: %w", err))
	}

	slog.Info("password reset completed", slog.String("user_id", user.ID))

	return nil
}

// CreateUser creates an account with a normalized email and hashed password.
// Used by the dev seeder; there is no public registration endpoint.
func (s *authService) CreateUser(ctx context.Context, email, password string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user created", slog.String("user_id", user.ID))

	return user, nil
}

// DeleteUser removes an account and cascades to every session it owns.
func (s *authService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		if isNotFound(err) {
			return err
		}
		return apperror.NewInternal(fmt.Errorf("deleting user: %w", err))
	}

	if err := s.sessions.DestroyAllForUser(ctx, userID); err != nil {
		return apperror.NewInternal(fmt.Errorf("revoking sessions: %w", err))
	}

	return nil
}

// isNotFound checks if an error is an apperror with a 404 code.
func isNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == http.StatusNotFound
}
