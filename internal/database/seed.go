package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mleach/signon/internal/auth"
)

// devUsers are the accounts created in development for login testing.
// Never seeded in production.
var devUsers = []struct {
	email    string
	password string
}{
	{"test@test.com", "password123"},
	{"admin@test.com", "admin123"},
	{"user@test.com", "test123"},
}

// SeedDevUsers ensures the development test accounts exist. Idempotent:
// safe to call on every startup, existing accounts are left untouched.
func SeedDevUsers(ctx context.Context, db *sql.DB) error {
	repo := auth.NewUserRepository(db)

	for _, seed := range devUsers {
		exists, err := repo.EmailExists(ctx, seed.email)
		if err != nil {
			return fmt.Errorf("checking seed user %s: %w", seed.email, err)
		}
		if exists {
			continue
		}

		hash, err := auth.HashPassword(seed.password)
		if err != nil {
			return fmt.Errorf("hashing seed password: %w", err)
		}

		user := &auth.User{
			ID:           uuid.NewString(),
			Email:        seed.email,
			PasswordHash: hash,
			CreatedAt:    time.Now().UTC(),
		}
		if err := repo.Create(ctx, user); err != nil {
			return fmt.Errorf("creating seed user %s: %w", seed.email, err)
		}

		slog.Info("seeded dev user", slog.String("email", seed.email))
	}

	return nil
}
