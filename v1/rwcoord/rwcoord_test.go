package rwcoord

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadersShare(t *testing.T) {
	rw := New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := rw.RLock(ctx); err != nil {
			t.Fatalf("rlock %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		rw.RUnlock()
	}
	if err := rw.Lock(ctx); err != nil {
		t.Fatalf("lock after readers drained: %v", err)
	}
	rw.Unlock()
}

func TestWriterExcludesReaders(t *testing.T) {
	rw := New()
	ctx := context.Background()
	if err := rw.Lock(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := rw.RLock(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("reader slipped past writer: %v", err)
	}
	rw.Unlock()
	if err := rw.RLock(ctx); err != nil {
		t.Fatalf("rlock after unlock: %v", err)
	}
	rw.RUnlock()
}

func TestWaitingWriterBlocksNewReaders(t *testing.T) {
	rw := New()
	ctx := context.Background()
	if err := rw.RLock(ctx); err != nil {
		t.Fatalf("rlock: %v", err)
	}

	writerIn := make(chan struct{})
	go func() {
		_ = rw.Lock(ctx)
		close(writerIn)
	}()
	// wait for the writer to queue behind the reader
	for i := 0; ; i++ {
		rw.mu.Lock()
		n := len(rw.waitingW)
		rw.mu.Unlock()
		if n == 1 {
			break
		}
		if i > 100 {
			t.Fatal("writer never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// a new reader must now queue behind the writer, not share
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := rw.RLock(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("reader jumped the writer queue: %v", err)
	}

	rw.RUnlock()
	select {
	case <-writerIn:
	case <-time.After(time.Second):
		t.Fatal("writer never promoted")
	}
	rw.Unlock()
}

func TestReleaseWakesAllQueuedReaders(t *testing.T) {
	rw := New()
	ctx := context.Background()
	if err := rw.Lock(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}

	const n = 4
	var active atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rw.RLock(ctx); err != nil {
				t.Errorf("rlock: %v", err)
				return
			}
			active.Add(1)
			time.Sleep(50 * time.Millisecond)
			rw.RUnlock()
		}()
	}
	time.Sleep(30 * time.Millisecond)
	rw.Unlock()
	time.Sleep(30 * time.Millisecond)
	if got := active.Load(); got != n {
		t.Fatalf("expected %d concurrent readers after writer release, got %d", n, got)
	}
	wg.Wait()
}

func TestWritersFIFO(t *testing.T) {
	rw := New()
	ctx := context.Background()
	if err := rw.Lock(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := rw.Lock(ctx); err != nil {
				t.Errorf("lock %d: %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			rw.Unlock()
		}(i)
		// stagger arrival so the queue order is deterministic
		for {
			rw.mu.Lock()
			n := len(rw.waitingW)
			rw.mu.Unlock()
			if n == i+1 {
				break
			}
			time.Sleep(2 * time.Millisecond)
		}
	}
	rw.Unlock()
	wg.Wait()
	for i, id := range order {
		if id != i {
			t.Fatalf("writers served out of order: %v", order)
		}
	}
}

func TestAbandonGrantedSlotIsReturned(t *testing.T) {
	rw := New()
	ctx := context.Background()
	if err := rw.Lock(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}
	cctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- rw.Lock(cctx) }()
	for {
		rw.mu.Lock()
		n := len(rw.waitingW)
		rw.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	rw.Unlock()
	// the coordinator must be fully free again
	if err := rw.Lock(ctx); err != nil {
		t.Fatalf("lock after abandoned waiter: %v", err)
	}
	rw.Unlock()
}
