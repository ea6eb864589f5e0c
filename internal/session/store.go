// Package session implements the server-side session store. Sessions are
// revocable proofs of authentication: an opaque random token maps to a JSON
// record in Redis, and a per-user index set allows revoking every session a
// user owns in one operation (logout-all on password change, user deletion).
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// keyPrefix is the Redis key prefix for session records.
	keyPrefix = "session:"

	// userIndexPrefix is the Redis key prefix for the per-user token index.
	userIndexPrefix = "user_sessions:"

	// tokenBytes is the number of random bytes in a session token.
	// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
	tokenBytes = 32
)

// Session is the record stored against a session token. The token itself is
// the Redis key suffix and is never stored inside the value.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// Metadata captures client details recorded at session creation.
type Metadata struct {
	IP        string
	UserAgent string
}

// Store persists sessions in Redis with a fixed TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a session store backed by the given Redis client.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Create generates a random token, stores the session record, and adds the
// token to the owning user's index set. Both keys carry the store TTL so a
// fully expired user leaves nothing behind.
func (s *Store) Create(ctx context.Context, userID, email string, meta Metadata) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	sess := Session{
		UserID:    userID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshaling session: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyPrefix+token, data, s.ttl)
	pipe.SAdd(ctx, userIndexPrefix+userID, token)
	pipe.Expire(ctx, userIndexPrefix+userID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}

	return token, nil
}

// Resolve returns the live session for a token, or nil if the session does
// not exist or was destroyed. Only infrastructure failures return an error.
func (s *Store) Resolve(ctx context.Context, token string) (*Session, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}

	return &sess, nil
}

// Destroy removes a single session. Destroying a missing session is not an
// error, so double logout is harmless.
func (s *Store) Destroy(ctx context.Context, token string) error {
	// Read the record first so the user index can be pruned too.
	sess, err := s.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keyPrefix+token)
	pipe.SRem(ctx, userIndexPrefix+sess.UserID, token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}

	return nil
}

// DestroyAllForUser revokes every session the user owns. Used on password
// change so no previously issued session survives the reset. The deletes run
// in a single MULTI/EXEC and the method only returns once they are committed;
// callers must not respond to the client before this returns.
func (s *Store) DestroyAllForUser(ctx context.Context, userID string) error {
	indexKey := userIndexPrefix + userID

	tokens, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("listing user sessions: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, keyPrefix+token)
	}
	pipe.Del(ctx, indexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("destroying user sessions: %w", err)
	}

	return nil
}

// generateToken creates a cryptographically random hex-encoded token.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
