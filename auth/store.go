package auth

import (
	"context"
	"time"
)

// IdentityRecord is a stored identity. PasswordHash is a bcrypt hash.
type IdentityRecord struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// SessionRecord is a stored session. A session is valid while it is not
// revoked and ExpiresAt is in the future.
type SessionRecord struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Store persists identities and sessions.
//
// InsertIdentity must return generic.ErrEmailTaken when the email exists.
// Get* return (nil, nil) for missing rows.
type Store interface {
	InsertIdentity(ctx context.Context, rec IdentityRecord) error
	GetIdentityByEmail(ctx context.Context, email string) (*IdentityRecord, error)
	GetIdentity(ctx context.Context, id string) (*IdentityRecord, error)

	InsertSession(ctx context.Context, rec SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
}
