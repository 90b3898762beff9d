package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newRedisLocker(t *testing.T) (*Redis, context.Context, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := NewRedis(client)
	ctx := context.Background()
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return locker, ctx, cleanup
}

func TestRedisTryLockAcquireRelease(t *testing.T) {
	l, ctx, cleanup := newRedisLocker(t)
	defer cleanup()

	if err := l.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := l.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	l.mu.Lock()
	if _, ok := l.tokens["k"]; ok {
		t.Fatal("token not cleaned up on release")
	}
	l.mu.Unlock()

	ok, err := l.TryLock(ctx, "k", time.Second)
	if err != nil || !ok {
		t.Fatalf("trylock: %v ok %v", err, ok)
	}
	if ok, err := l.TryLock(ctx, "k", time.Second); err != nil || ok {
		t.Fatalf("expected lock held, ok %v err %v", ok, err)
	}
	if err := l.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestRedisReleaseRequiresMatchingToken(t *testing.T) {
	l1, ctx, cleanup := newRedisLocker(t)
	defer cleanup()
	l2 := NewRedis(l1.client)

	if ok, err := l1.TryLock(ctx, "k", 0); err != nil || !ok {
		t.Fatalf("trylock: %v ok %v", err, ok)
	}
	// A locker without the token must not be able to free the key.
	if err := l2.Release(ctx, "k"); err != nil {
		t.Fatalf("foreign release: %v", err)
	}
	if ok, err := l2.TryLock(ctx, "k", 0); err != nil || ok {
		t.Fatalf("lock was stolen: ok %v err %v", ok, err)
	}
	if err := l1.Release(ctx, "k"); err != nil {
		t.Fatalf("owner release: %v", err)
	}
}

func TestRedisAcquireTimeout(t *testing.T) {
	l1, ctx, cleanup := newRedisLocker(t)
	defer cleanup()
	l2 := NewRedis(l1.client)

	if ok, err := l1.TryLock(ctx, "k", 0); err != nil || !ok {
		t.Fatalf("initial trylock: %v ok %v", err, ok)
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	if err := l2.Acquire(cctx, "k", 0); err == nil {
		t.Fatal("expected timeout error")
	}
}
