package lock

import (
	"context"
	"testing"
	"time"

	"github.com/mirkobrombin/go-latch/v1/exitguard"
	"github.com/mirkobrombin/go-latch/v1/fsx"
	"github.com/mirkobrombin/go-latch/v1/latch"
	"github.com/mirkobrombin/go-latch/v1/mtime"
)

func newFileLocker(t *testing.T) *File {
	t.Helper()
	mtime.ResetCache()
	t.Cleanup(mtime.ResetCache)
	mgr := latch.New(
		latch.WithFilesystem(fsx.NewMemFS()),
		latch.WithGuard(exitguard.New()),
	)
	return NewFile(mgr)
}

func TestFileTryLockAcquireRelease(t *testing.T) {
	l := newFileLocker(t)
	ctx := context.Background()
	ok, err := l.TryLock(ctx, "data.db", 0)
	if err != nil || !ok {
		t.Fatalf("trylock: %v ok %v", err, ok)
	}
	if ok, err := l.TryLock(ctx, "data.db", 0); err != nil || ok {
		t.Fatalf("expected lock held, got ok %v err %v", ok, err)
	}
	if err := l.Release(ctx, "data.db"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := l.TryLock(ctx, "data.db", 0); err != nil || !ok {
		t.Fatalf("expected lock re-acquired, ok %v err %v", ok, err)
	}
}

func TestFileAcquireWaitsForRelease(t *testing.T) {
	l := newFileLocker(t)
	ctx := context.Background()
	if ok, _ := l.TryLock(ctx, "data.db", 0); !ok {
		t.Fatal("seed trylock failed")
	}
	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx, "data.db", 0) }()
	time.Sleep(50 * time.Millisecond)
	if err := l.Release(ctx, "data.db"); err != nil {
		t.Fatalf("release: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("acquire never obtained the freed lock")
	}
}

func TestFileAcquireRespectsContext(t *testing.T) {
	l := newFileLocker(t)
	ctx := context.Background()
	if ok, _ := l.TryLock(ctx, "data.db", 0); !ok {
		t.Fatal("seed trylock failed")
	}
	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(cctx, "data.db", 0); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestFileReleaseUnheldKeyIsNoop(t *testing.T) {
	l := newFileLocker(t)
	if err := l.Release(context.Background(), "never-locked"); err != nil {
		t.Fatalf("release: %v", err)
	}
}
