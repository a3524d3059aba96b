package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and local development.
// It enforces the same constraints as the Postgres schema: unique emails
// and credential rows cascading on user deletion.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*User
	credentials map[string]*Credential
	now         func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*User),
		credentials: make(map[string]*Credential),
		now:         time.Now,
	}
}

// SetNowFunc overrides the time source.
func (m *MemoryStore) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		m.now = fn
	}
}

func (m *MemoryStore) Users(ctx context.Context) UserStore             { return (*memUserStore)(m) }
func (m *MemoryStore) Credentials(ctx context.Context) CredentialStore { return (*memCredStore)(m) }

// ReplacePassword swaps the hash and revokes outstanding reset credentials
// under one lock, mirroring the Postgres transaction.
func (m *MemoryStore) ReplacePassword(ctx context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.HashedPassword = passwordHash
	u.UpdatedAt = m.now().UTC()
	for _, c := range m.credentials {
		if c.OwnerID == userID && c.Kind == KindReset {
			c.IsActive = false
		}
	}
	return nil
}

type memUserStore MemoryStore

func (s *memUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Email == email {
			return ErrAlreadyExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	u.Email = email
	now := s.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUserStore) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUserStore) Update(ctx context.Context, id string, patch UserUpdate) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.FullName != nil {
		u.FullName = *patch.FullName
	}
	if patch.PhoneNumber != nil {
		u.PhoneNumber = *patch.PhoneNumber
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Status != nil {
		u.Status = *patch.Status
	}
	if patch.EmailVerified != nil {
		u.EmailVerified = *patch.EmailVerified
	}
	if patch.PhoneVerified != nil {
		u.PhoneVerified = *patch.PhoneVerified
	}
	u.UpdatedAt = s.now().UTC()
	cp := *u
	return &cp, nil
}

func (s *memUserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	for cid, c := range s.credentials {
		if c.OwnerID == id {
			delete(s.credentials, cid)
		}
	}
	return nil
}

type memCredStore MemoryStore

func (s *memCredStore) Create(ctx context.Context, c *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, ok := s.credentials[c.ID]; ok {
		return ErrAlreadyExists
	}
	if c.IssuedAt.IsZero() {
		c.IssuedAt = s.now().UTC()
	}
	c.IsActive = true
	cp := *c
	s.credentials[c.ID] = &cp
	return nil
}

func (s *memCredStore) Get(ctx context.Context, id string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memCredStore) GetAllForOwner(ctx context.Context, ownerID string, kind Kind) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Credential
	for _, c := range s.credentials {
		if c.OwnerID != ownerID {
			continue
		}
		if kind != "" && c.Kind != kind {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memCredStore) Invalidate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.credentials[id]; ok {
		c.IsActive = false
	}
	return nil
}

func (s *memCredStore) InvalidateAll(ctx context.Context, ownerID string, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.credentials {
		if c.OwnerID != ownerID {
			continue
		}
		if kind != "" && c.Kind != kind {
			continue
		}
		c.IsActive = false
	}
	return nil
}

func (s *memCredStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.credentials {
		if c.ExpiresAt.Before(before) {
			delete(s.credentials, id)
			n++
		}
	}
	return n, nil
}
