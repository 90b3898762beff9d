package presets

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewInMemoryLocker(t *testing.T) {
	l := NewInMemoryLocker()
	ctx := context.Background()

	ok, err := l.TryLock(ctx, "foo", time.Minute)
	if err != nil || !ok {
		t.Fatalf("trylock: %v ok %v", err, ok)
	}
	if err := l.Release(ctx, "foo"); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestNewRedisLocker(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()

	l := NewRedisLocker(RedisOptions{Addr: mr.Addr()})
	ctx := context.Background()

	ok, err := l.TryLock(ctx, "foo", time.Minute)
	if err != nil || !ok {
		t.Fatalf("trylock: %v ok %v", err, ok)
	}
	if ok, err := l.TryLock(ctx, "foo", time.Minute); err != nil || ok {
		t.Fatalf("expected held, ok %v err %v", ok, err)
	}
	if err := l.Release(ctx, "foo"); err != nil {
		t.Fatalf("release: %v", err)
	}
}
