package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSessionIssuer(t *testing.T) (*SessionIssuer, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewSessionIssuer(store.Credentials(context.Background())), store
}

func TestSessionOpenAndResolve(t *testing.T) {
	issuer, _ := newTestSessionIssuer(t)
	ctx := context.Background()

	meta := SessionMetadata{UserAgent: "test-agent", IPAddress: "10.0.0.1"}
	cred, err := issuer.Open(ctx, "owner-1", time.Hour, meta)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if cred.Kind != KindSession {
		t.Fatalf("expected session kind, got %q", cred.Kind)
	}
	if cred.UserAgent != "test-agent" || cred.IPAddress != "10.0.0.1" {
		t.Fatalf("metadata not recorded: %+v", cred)
	}

	got, err := issuer.Resolve(ctx, cred.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.OwnerID != "owner-1" {
		t.Fatalf("resolved wrong owner: %q", got.OwnerID)
	}
}

func TestSessionResolveRejectsMalformedID(t *testing.T) {
	issuer, _ := newTestSessionIssuer(t)
	if _, err := issuer.Resolve(context.Background(), "not-a-uuid"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionResolveUnknownID(t *testing.T) {
	issuer, _ := newTestSessionIssuer(t)
	if _, err := issuer.Resolve(context.Background(), "3b8ff04e-9f0d-4f7e-9c83-0a4f6f2a1b11"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	issuer, _ := newTestSessionIssuer(t)
	ctx := context.Background()

	cred, err := issuer.Open(ctx, "owner-1", time.Hour, SessionMetadata{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := issuer.Close(ctx, cred.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := issuer.Resolve(ctx, cred.ID); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected closed session to fail resolution, got %v", err)
	}
	if err := issuer.Close(ctx, cred.ID); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSessionExpiryRevokesRow(t *testing.T) {
	issuer, store := newTestSessionIssuer(t)
	ctx := context.Background()

	base := time.Now().UTC()
	issuer.SetNowFunc(func() time.Time { return base })

	cred, err := issuer.Open(ctx, "owner-1", time.Minute, SessionMetadata{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	issuer.SetNowFunc(func() time.Time { return base.Add(2 * time.Minute) })
	if _, err := issuer.Resolve(ctx, cred.ID); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired session to fail, got %v", err)
	}

	row, err := store.Credentials(ctx).Get(ctx, cred.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if row.IsActive {
		t.Fatal("expected expired session row to be invalidated")
	}
}

func TestCloseAllForOwner(t *testing.T) {
	issuer, _ := newTestSessionIssuer(t)
	ctx := context.Background()

	first, err := issuer.Open(ctx, "owner-1", time.Hour, SessionMetadata{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	second, err := issuer.Open(ctx, "owner-1", time.Hour, SessionMetadata{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	other, err := issuer.Open(ctx, "owner-2", time.Hour, SessionMetadata{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := issuer.CloseAllForOwner(ctx, "owner-1"); err != nil {
		t.Fatalf("CloseAllForOwner: %v", err)
	}
	if _, err := issuer.Resolve(ctx, first.ID); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected first session closed, got %v", err)
	}
	if _, err := issuer.Resolve(ctx, second.ID); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected second session closed, got %v", err)
	}
	if _, err := issuer.Resolve(ctx, other.ID); err != nil {
		t.Fatalf("expected other owner's session untouched, got %v", err)
	}
}
