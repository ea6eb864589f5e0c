package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Codec signs and verifies the session credential delivered in the cookie.
// The cookie value is "<token>.<signature>" where the signature is an
// HMAC-SHA256 of the token under the application secret. A tampered or
// forged cookie fails verification before any Redis lookup happens.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec signing with the given secret key.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode produces the signed cookie value for a session token.
func (c *Codec) Encode(token string) string {
	return token + "." + c.sign(token)
}

// Decode verifies a signed cookie value and returns the embedded token.
// Returns false for malformed values and signature mismatches.
func (c *Codec) Decode(credential string) (string, bool) {
	token, sig, found := strings.Cut(credential, ".")
	if !found || token == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(token))) {
		return "", false
	}
	return token, true
}

// sign computes the base64url HMAC-SHA256 signature of a token.
func (c *Codec) sign(token string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
