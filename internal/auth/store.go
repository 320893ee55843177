package auth

import (
	"context"
	"time"
)

// UserStore is the persistence boundary the auth service needs for users.
// Email lookups are case-sensitive, matching how emails are stored.
type UserStore interface {
	Create(ctx context.Context, user User) error
	GetByEmail(ctx context.Context, email string) (User, bool, error)
	GetByID(ctx context.Context, id string) (User, bool, error)
	List(ctx context.Context) ([]User, error)
}

// RefreshTokenStore persists issued refresh tokens. Implementations take the
// raw token string and are free to hash it at rest; every method looks tokens
// up by the raw value.
type RefreshTokenStore interface {
	Create(ctx context.Context, rawToken, userID string, expiresAt time.Time) error
	GetByToken(ctx context.Context, rawToken string) (RefreshTokenRecord, bool, error)

	// Revoke is idempotent: revoking an unknown or already-revoked token is
	// not an error at this layer.
	Revoke(ctx context.Context, rawToken string) error

	// Rotate atomically revokes the old token and persists the new one.
	// The old token must exist, be unrevoked and unexpired, or the whole
	// operation fails with apperror.InvalidToken and nothing changes.
	Rotate(ctx context.Context, rawOldToken, rawNewToken, userID string, newExpiresAt time.Time) error
}
