package auth

import "time"

// Kind is the functional category of a credential.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "reset"
	KindSession Kind = "session"
)

// Valid reports whether the kind is one of the known categories.
func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindReset, KindSession:
		return true
	}
	return false
}

// Roles assignable to a user account.
const (
	RoleUser   = "user"
	RoleVendor = "vendor"
	RoleAdmin  = "admin"
)

// User status values. Anything other than "active" blocks authentication.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// User represents a customer or vendor account.
type User struct {
	ID             string
	FullName       string
	Email          string
	PhoneNumber    string
	HashedPassword string
	Role           string
	Status         string
	EmailVerified  bool
	PhoneVerified  bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Credential is an issued proof of identity (token or session) tracked for
// revocation. Validity requires IsActive and an unexpired ExpiresAt; both are
// checked on every use.
type Credential struct {
	ID        string
	OwnerID   string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
	IsActive  bool
	UserAgent string
	IPAddress string
}

// Expired reports whether the credential's lifetime has elapsed at t.
func (c *Credential) Expired(t time.Time) bool {
	return !t.Before(c.ExpiresAt)
}

// SessionMetadata captures where a login originated.
type SessionMetadata struct {
	UserAgent string
	IPAddress string
}

// UserUpdate is an explicit patch applied to a user row. Nil fields are left
// untouched; there is no accept-arbitrary-attributes path into the store.
type UserUpdate struct {
	FullName      *string
	PhoneNumber   *string
	Role          *string
	Status        *string
	EmailVerified *bool
	PhoneVerified *bool
}

// Empty reports whether the patch would change nothing.
func (u UserUpdate) Empty() bool {
	return u.FullName == nil && u.PhoneNumber == nil && u.Role == nil &&
		u.Status == nil && u.EmailVerified == nil && u.PhoneVerified == nil
}

// Principal is an authenticated user as seen by request handlers.
type Principal struct {
	User *User
}

// HasRole reports whether the principal carries the given role.
func (p Principal) HasRole(role string) bool {
	return p.User != nil && p.User.Role == role
}

// Verified reports whether the account finished out-of-band verification.
// Vendors must verify a contact channel before acting on their shop.
func (p Principal) Verified() bool {
	if p.User == nil {
		return false
	}
	return p.User.EmailVerified || p.User.PhoneVerified
}
