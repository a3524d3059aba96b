package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Credentials(ctx context.Context) CredentialStore

	// ReplacePassword swaps the user's password hash and revokes every
	// outstanding reset credential for that user in one transaction.
	ReplacePassword(ctx context.Context, userID, passwordHash string) error
}

// UserStore manages user accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id string, patch UserUpdate) (*User, error)
	// Delete removes the user; credentials cascade at the schema level.
	Delete(ctx context.Context, id string) error
}

// CredentialStore manages credential rows. Invalidate and InvalidateAll are
// single-statement updates, which makes each of them atomic with respect to
// concurrent logins.
type CredentialStore interface {
	// Create persists the credential, generating a fresh random ID when the
	// caller leaves it empty.
	Create(ctx context.Context, c *Credential) error
	Get(ctx context.Context, id string) (*Credential, error)
	// GetAllForOwner lists credentials for a user; kind == "" means all kinds.
	GetAllForOwner(ctx context.Context, ownerID string, kind Kind) ([]*Credential, error)
	// Invalidate flips is_active off. Invalidating twice is not an error.
	Invalidate(ctx context.Context, id string) error
	// InvalidateAll bulk-revokes a user's credentials, optionally scoped by kind.
	InvalidateAll(ctx context.Context, ownerID string, kind Kind) error
	// DeleteExpired hard-removes rows whose expiry precedes the cutoff.
	// Storage hygiene only; expiry is enforced lazily at validation time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// NonceStore records consumed one-time challenge identifiers. Consume must be
// atomic: it returns true exactly once per id within the ttl window.
type NonceStore interface {
	Consume(ctx context.Context, id string, ttl time.Duration) (bool, error)
}
