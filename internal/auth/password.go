package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password using bcrypt. The cost factor is
// fixed process-wide; the salt is embedded in the digest.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored digest. It
// returns false for any mismatch, including a malformed digest; no plaintext
// is retained past this boundary.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyDigest is compared against when login hits an unknown email so the
// missing-user path costs one bcrypt verification, same as a real mismatch.
var dummyDigest = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("vendoor-login-timing-pad"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}()
