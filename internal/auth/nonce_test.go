package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryNonceStoreConsumeOnce(t *testing.T) {
	store := NewMemoryNonceStore()
	ctx := context.Background()

	fresh, err := store.Consume(ctx, "nonce-1", time.Minute)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !fresh {
		t.Fatal("expected first consume to return fresh")
	}

	fresh, err = store.Consume(ctx, "nonce-1", time.Minute)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if fresh {
		t.Fatal("expected second consume to return stale")
	}

	// A different id is unaffected.
	fresh, err = store.Consume(ctx, "nonce-2", time.Minute)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !fresh {
		t.Fatal("expected unrelated id to be fresh")
	}
}

func TestMemoryNonceStorePurgesExpired(t *testing.T) {
	store := NewMemoryNonceStore()
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }

	if fresh, _ := store.Consume(ctx, "nonce-1", time.Minute); !fresh {
		t.Fatal("expected fresh consume")
	}

	// Once the entry's ttl elapses the id may be consumed again; the signed
	// challenge expiry is what actually bounds replay in that window.
	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	if fresh, _ := store.Consume(ctx, "nonce-1", time.Minute); !fresh {
		t.Fatal("expected expired entry to be purged")
	}
}

func TestRedisNonceStoreConsume(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisNonceStore(client)
	ctx := context.Background()

	fresh, err := store.Consume(ctx, "nonce-1", time.Minute)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !fresh {
		t.Fatal("expected first consume to return fresh")
	}

	fresh, err = store.Consume(ctx, "nonce-1", time.Minute)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if fresh {
		t.Fatal("expected second consume to return stale")
	}

	// The key carries the challenge's remaining ttl.
	if ttl := mr.TTL("otp-nonce:nonce-1"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}
}

func TestRedisNonceStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	store := NewRedisNonceStore(client)
	if _, err := store.Consume(context.Background(), "nonce-1", time.Minute); err == nil {
		t.Fatal("expected error when redis is down")
	}
}
