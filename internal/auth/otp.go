package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const otpAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultOTPLength is the number of characters in a generated one-time code.
const DefaultOTPLength = 6

// OTP challenge purposes. A challenge minted for one channel cannot verify
// the other.
const (
	PurposeVerifyEmail = "verify-email"
	PurposeVerifyPhone = "verify-phone"
)

// GenerateOTP returns a cryptographically random uppercase-alphanumeric code.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = DefaultOTPLength
	}
	max := big.NewInt(int64(len(otpAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		buf[i] = otpAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// otpClaims is the signed payload of a challenge token. The subject is the
// bcrypt digest of the code; the plaintext code travels out-of-band only.
type otpClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// OTPIssuer signs and verifies one-time-code challenges. The challenge token
// is handed to the caller (a cookie) while the code goes out-of-band via SMS
// or email; verification recomputes the code hash and consumes the
// challenge's nonce so a captured cookie+code pair cannot be replayed.
type OTPIssuer struct {
	secret []byte
	issuer string
	nonces NonceStore
	now    func() time.Time
}

func NewOTPIssuer(secret []byte, issuer string, nonces NonceStore) (*OTPIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if nonces == nil {
		return nil, errors.New("auth: nonce store is required")
	}
	return &OTPIssuer{secret: secret, issuer: issuer, nonces: nonces, now: time.Now}, nil
}

// SetNowFunc injects a deterministic clock for tests.
func (i *OTPIssuer) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		i.now = fn
	}
}

// IssueChallenge signs a challenge for the given code. The code itself is
// never stored; only its hash is embedded in the token.
func (i *OTPIssuer) IssueChallenge(code, purpose string, ttl time.Duration) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be greater than zero", ErrInvalidInput)
	}
	digest, err := HashPassword(code)
	if err != nil {
		return "", err
	}
	now := i.now().UTC()
	claims := otpClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   digest,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign challenge: %w", err)
	}
	return signed, nil
}

// VerifyChallenge checks the submitted code against the challenge and marks
// the challenge consumed. A second verification of the same challenge fails
// even when code and signature are still good.
func (i *OTPIssuer) VerifyChallenge(ctx context.Context, challenge, submitted, purpose string) error {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" || submitted == "" {
		return ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(challenge, &otpClaims{},
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
	)
	if err != nil {
		return ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*otpClaims)
	if !ok || !parsed.Valid || claims.Purpose != purpose || claims.ID == "" {
		return ErrInvalidToken
	}
	if !VerifyPassword(claims.Subject, strings.ToUpper(strings.TrimSpace(submitted))) {
		return ErrInvalidToken
	}

	// Single-use enforcement: burn the nonce for the challenge's remaining
	// lifetime. Consume is atomic, so a concurrent replay loses the race.
	ttl := claims.ExpiresAt.Time.Sub(i.now())
	if ttl <= 0 {
		return ErrInvalidToken
	}
	fresh, err := i.nonces.Consume(ctx, claims.ID, ttl)
	if err != nil {
		return storeFault(err)
	}
	if !fresh {
		return ErrInvalidToken
	}
	return nil
}
