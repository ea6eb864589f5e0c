package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Password reset tokens are stateless: nothing is written to the database
// when one is minted. The token is an HS256 JWT carrying the user ID and a
// verifier derived from the user's current password hash. Expiry and the
// signature scope are the only invalidation mechanisms -- plus the verifier,
// which stops matching as soon as the password actually changes, so a token
// cannot complete a second reset.

// errTokenInvalid is returned for every parse/verification failure. Callers
// must not distinguish causes.
var errTokenInvalid = errors.New("reset token invalid")

// resetClaims is the JWT claim set for a password reset token.
type resetClaims struct {
	jwt.RegisteredClaims

	// Verifier is the SHA-256 of the password hash current at mint time.
	Verifier string `json:"pv"`
}

// mintResetToken creates a signed reset token for the user, valid for ttl.
func mintResetToken(secret []byte, user *User, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, resetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Verifier: passwordVerifier(user.PasswordHash),
	})

	return token.SignedString(secret)
}

// parseResetToken verifies the signature and expiry of a reset token and
// returns the embedded user ID and verifier. Tampered, expired, and
// malformed tokens all come back as errTokenInvalid.
func parseResetToken(secret []byte, tokenString string) (userID, verifier string, err error) {
	claims := &resetClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", "", errTokenInvalid
	}
	if claims.Subject == "" || claims.Verifier == "" {
		return "", "", errTokenInvalid
	}

	return claims.Subject, claims.Verifier, nil
}

// passwordVerifier derives the token verifier from a password hash.
func passwordVerifier(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:])
}
