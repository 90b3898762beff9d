package marker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mirkobrombin/go-latch/v1/fsx"
)

func TestClaimConflictRelease(t *testing.T) {
	s := NewStore(fsx.NewMemFS())
	if err := s.Claim("f.lock"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.Claim("f.lock"); !errors.Is(err, ErrClaimed) {
		t.Fatalf("expected ErrClaimed, got %v", err)
	}
	if err := s.Release("f.lock"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := s.Release("f.lock"); err != nil {
		t.Fatalf("release of absent marker must succeed, got %v", err)
	}
	if err := s.Claim("f.lock"); err != nil {
		t.Fatalf("re-claim after release: %v", err)
	}
}

func TestClaimPassesThroughIOErrors(t *testing.T) {
	m := fsx.NewMemFS()
	boom := errors.New("io trouble")
	m.Fail = func(op, path string) error {
		if op == "mkdir" {
			return boom
		}
		return nil
	}
	s := NewStore(m)
	if err := s.Claim("f.lock"); !errors.Is(err, boom) {
		t.Fatalf("expected passthrough, got %v", err)
	}
}

func TestProbeReturnsMtime(t *testing.T) {
	m := fsx.NewMemFS()
	s := NewStore(m)
	_ = s.Claim("f.lock")
	old := time.Now().Add(-time.Minute)
	m.SetModTime("f.lock", old)
	mt, err := s.Probe("f.lock")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !mt.Equal(old) {
		t.Fatalf("got %v want %v", mt, old)
	}
}

func TestIsStale(t *testing.T) {
	if IsStale(time.Now(), 10*time.Second) {
		t.Fatal("fresh marker reported stale")
	}
	if !IsStale(time.Now().Add(-5*time.Second), 2*time.Second) {
		t.Fatal("old marker not reported stale")
	}
}

func TestWaitAbsent(t *testing.T) {
	m := fsx.NewMemFS()
	s := NewStore(m)
	ctx := context.Background()

	if err := s.WaitAbsent(ctx, "gone.lock", 3); err != nil {
		t.Fatalf("absent marker: %v", err)
	}

	_ = s.Claim("stuck.lock")
	if err := s.WaitAbsent(ctx, "stuck.lock", 2); !errors.Is(err, ErrStillPresent) {
		t.Fatalf("expected ErrStillPresent, got %v", err)
	}

	// Marker released while we poll.
	_ = s.Claim("racing.lock")
	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = s.Release("racing.lock")
	}()
	if err := s.WaitAbsent(ctx, "racing.lock", 10); err != nil {
		t.Fatalf("marker released mid-poll: %v", err)
	}
}

func TestWaitAbsentHonorsContext(t *testing.T) {
	m := fsx.NewMemFS()
	s := NewStore(m)
	_ = s.Claim("f.lock")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.WaitAbsent(ctx, "f.lock", 100); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
