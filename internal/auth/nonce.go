package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const nonceKeyPrefix = "otp-nonce"

// RedisNonceStore records consumed challenge ids in Redis with a TTL matching
// the challenge's remaining lifetime. SETNX makes Consume atomic across
// replicas of the service.
type RedisNonceStore struct {
	client *redis.Client
	prefix string
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client, prefix: nonceKeyPrefix}
}

func (s *RedisNonceStore) key(id string) string { return s.prefix + ":" + id }

func (s *RedisNonceStore) Consume(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(id), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

// MemoryNonceStore is an in-process NonceStore for single-instance
// deployments and tests. Entries are dropped lazily once expired.
type MemoryNonceStore struct {
	mu       sync.Mutex
	consumed map[string]time.Time
	now      func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		consumed: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *MemoryNonceStore) Consume(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.consumed {
		if now.After(exp) {
			delete(s.consumed, k)
		}
	}
	if _, seen := s.consumed[id]; seen {
		return false, nil
	}
	s.consumed[id] = now.Add(ttl)
	return true, nil
}
