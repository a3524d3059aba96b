package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionIssuer mints opaque server-side session identifiers. The id carries
// no claims; validity lives entirely in the credential store, so there is no
// cryptographic fallback when the row is gone.
type SessionIssuer struct {
	creds CredentialStore
	now   func() time.Time
}

func NewSessionIssuer(creds CredentialStore) *SessionIssuer {
	return &SessionIssuer{creds: creds, now: time.Now}
}

// SetNowFunc injects a deterministic clock for tests.
func (s *SessionIssuer) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Open creates a session credential for ownerID with the given lifetime.
func (s *SessionIssuer) Open(ctx context.Context, ownerID string, ttl time.Duration, meta SessionMetadata) (*Credential, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be greater than zero", ErrInvalidInput)
	}
	now := s.now().UTC()
	cred := &Credential{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      KindSession,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return nil, storeFault(err)
	}
	return cred, nil
}

// Resolve looks up a session id. An expired row is revoked as a side effect
// before the failure is returned.
func (s *SessionIssuer) Resolve(ctx context.Context, sessionID string) (*Credential, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, ErrInvalidToken
	}
	cred, err := s.creds.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, storeFault(err)
	}
	if cred.Kind != KindSession || !cred.IsActive {
		return nil, ErrInvalidToken
	}
	if cred.Expired(s.now()) {
		if err := s.creds.Invalidate(ctx, cred.ID); err != nil {
			return nil, storeFault(err)
		}
		return nil, ErrInvalidToken
	}
	return cred, nil
}

// Close revokes one session. Closing a session that is already gone or
// already revoked is not an error.
func (s *SessionIssuer) Close(ctx context.Context, sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return ErrInvalidToken
	}
	if err := s.creds.Invalidate(ctx, sessionID); err != nil {
		return storeFault(err)
	}
	return nil
}

// CloseAllForOwner revokes every session belonging to ownerID. Login uses
// this to enforce the single-active-session policy before opening a new one,
// and logout-everywhere uses it directly.
func (s *SessionIssuer) CloseAllForOwner(ctx context.Context, ownerID string) error {
	if err := s.creds.InvalidateAll(ctx, ownerID, KindSession); err != nil {
		return storeFault(err)
	}
	return nil
}
