package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenClaims is the signed payload of access, refresh, and reset tokens.
type tokenClaims struct {
	Kind Kind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and checks signed bearer tokens. A token is never trusted
// on its signature alone: issuance records a credential row keyed by the jti,
// and Validate requires that row to be active and unexpired, which is what
// makes server-side revocation of a stateless token possible.
type TokenIssuer struct {
	secret []byte
	issuer string
	creds  CredentialStore
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string, creds CredentialStore) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	return &TokenIssuer{
		secret: secret,
		issuer: issuer,
		creds:  creds,
		now:    time.Now,
	}, nil
}

// SetNowFunc injects a deterministic clock for tests.
func (i *TokenIssuer) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		i.now = fn
	}
}

// Issue signs a token for ownerID and records the matching credential row.
func (i *TokenIssuer) Issue(ctx context.Context, ownerID string, kind Kind, ttl time.Duration) (string, *Credential, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", nil, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if !kind.Valid() || kind == KindSession {
		return "", nil, fmt.Errorf("%w: kind %q is not a token kind", ErrInvalidInput, kind)
	}
	if ttl <= 0 {
		return "", nil, fmt.Errorf("%w: ttl must be greater than zero", ErrInvalidInput)
	}

	now := i.now().UTC()
	cred := &Credential{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	claims := tokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   ownerID,
			ID:        cred.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	if err := i.creds.Create(ctx, cred); err != nil {
		return "", nil, storeFault(err)
	}
	return signed, cred, nil
}

// Verify checks signature and signed expiry only; it never consults the store.
func (i *TokenIssuer) Verify(raw string) (*tokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{},
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.ID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Validate composes Verify with the credential-store check. The store expiry
// is authoritative for revocation, the signed expiry for forgery resistance;
// a row found expired here is revoked on the spot before failure is returned.
func (i *TokenIssuer) Validate(ctx context.Context, raw string, kind Kind) (*Credential, error) {
	claims, err := i.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrInvalidToken
	}

	cred, err := i.creds.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, storeFault(err)
	}
	if cred.OwnerID != claims.Subject || cred.Kind != kind {
		return nil, ErrInvalidToken
	}
	if !cred.IsActive {
		return nil, ErrInvalidToken
	}
	if cred.Expired(i.now()) {
		// Lazy self-healing cleanup: the row outlived its expiry without a
		// sweep, so revoke it now.
		if err := i.creds.Invalidate(ctx, cred.ID); err != nil {
			return nil, storeFault(err)
		}
		return nil, ErrInvalidToken
	}
	return cred, nil
}

// Revoke invalidates the credential row behind a structurally valid token.
// Revoking an already-revoked token is not an error.
func (i *TokenIssuer) Revoke(ctx context.Context, raw string) error {
	claims, err := i.Verify(raw)
	if err != nil {
		return err
	}
	if err := i.creds.Invalidate(ctx, claims.ID); err != nil {
		return storeFault(err)
	}
	return nil
}

func storeFault(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
