package rwcoord

import (
	"context"
	"sync"
)

type waiter struct {
	ready chan struct{}
}

// RW coordinates concurrent readers and exclusive writers within one
// process. Readers share while no writer holds the lock or waits for it;
// waiting writers are served in arrival order before any queued reader.
type RW struct {
	mu       sync.Mutex
	readers  int
	writer   bool
	waitingW []*waiter
	waitingR []*waiter
}

// New returns an idle coordinator.
func New() *RW { return &RW{} }

// RLock acquires a shared slot, waiting if a writer holds or awaits the
// lock. It returns ctx.Err() if the context ends first.
func (rw *RW) RLock(ctx context.Context) error {
	rw.mu.Lock()
	if !rw.writer && len(rw.waitingW) == 0 {
		rw.readers++
		rw.mu.Unlock()
		return nil
	}
	w := &waiter{ready: make(chan struct{})}
	rw.waitingR = append(rw.waitingR, w)
	rw.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		return rw.abandon(ctx, w, false)
	}
}

// Lock acquires the exclusive slot, waiting for active readers and earlier
// writers. It returns ctx.Err() if the context ends first.
func (rw *RW) Lock(ctx context.Context) error {
	rw.mu.Lock()
	if !rw.writer && rw.readers == 0 && len(rw.waitingW) == 0 {
		rw.writer = true
		rw.mu.Unlock()
		return nil
	}
	w := &waiter{ready: make(chan struct{})}
	rw.waitingW = append(rw.waitingW, w)
	rw.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		return rw.abandon(ctx, w, true)
	}
}

// abandon removes a cancelled waiter from its queue. The grant may have
// raced with the cancellation; in that case the slot is given back so the
// caller can uniformly treat the error as "never acquired".
func (rw *RW) abandon(ctx context.Context, w *waiter, isWriter bool) error {
	rw.mu.Lock()
	granted := true
	queue := &rw.waitingR
	if isWriter {
		queue = &rw.waitingW
	}
	for i, q := range *queue {
		if q == w {
			*queue = append((*queue)[:i], (*queue)[i+1:]...)
			granted = false
			break
		}
	}
	if granted {
		if isWriter {
			rw.writer = false
		} else {
			rw.readers--
		}
		rw.promote()
	}
	rw.mu.Unlock()
	return ctx.Err()
}

// RUnlock releases a shared slot.
func (rw *RW) RUnlock() {
	rw.mu.Lock()
	rw.readers--
	if rw.readers == 0 {
		rw.promote()
	}
	rw.mu.Unlock()
}

// Unlock releases the exclusive slot.
func (rw *RW) Unlock() {
	rw.mu.Lock()
	rw.writer = false
	rw.promote()
	rw.mu.Unlock()
}

// promote hands the lock to the next waiters: the oldest waiting writer if
// the lock is free, otherwise every queued reader at once. Caller holds mu.
func (rw *RW) promote() {
	if rw.writer || rw.readers > 0 {
		return
	}
	if len(rw.waitingW) > 0 {
		next := rw.waitingW[0]
		rw.waitingW = rw.waitingW[1:]
		rw.writer = true
		close(next.ready)
		return
	}
	for _, r := range rw.waitingR {
		rw.readers++
		close(r.ready)
	}
	rw.waitingR = nil
}
