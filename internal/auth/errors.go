package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password at
	// login. The two cases are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInactiveAccount rejects authentication for a deactivated principal.
	ErrInactiveAccount = errors.New("auth: account is inactive")

	// ErrInvalidToken collapses signature failure, malformed payload, expiry,
	// missing or inactive store row, and kind mismatch into one
	// client-visible category.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrForbidden means authenticated but not allowed.
	ErrForbidden = errors.New("auth: forbidden")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")

	// ErrDeliveryFailed marks an outbound email/SMS transport fault. It is a
	// server-side error and never rolls back an already-issued credential.
	ErrDeliveryFailed = errors.New("auth: delivery failed")

	// ErrStoreUnavailable wraps unexpected persistence-layer faults so
	// callers can tell a broken database from bad credentials.
	ErrStoreUnavailable = errors.New("auth: store unavailable")

	// ErrNotSupported is returned for operations the configured credential
	// strategy does not implement (e.g. refresh in session deployments).
	ErrNotSupported = errors.New("auth: not supported")
)
