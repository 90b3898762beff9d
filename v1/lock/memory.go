package lock

import (
	"context"
	"sync"
	"time"
)

type lockState struct {
	timer  *time.Timer
	notify chan struct{}
}

// InMemory implements Locker using local memory. It coordinates goroutines
// within one process only; use File for cross-process locks.
type InMemory struct {
	mu    sync.Mutex
	locks map[string]*lockState
}

// NewInMemory returns a new in-memory locker.
func NewInMemory() *InMemory {
	return &InMemory{locks: make(map[string]*lockState)}
}

// TryLock attempts to obtain the lock without waiting. It returns true on success.
func (l *InMemory) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.locks[key]; ok {
		return false, nil
	}
	st := &lockState{notify: make(chan struct{})}
	if ttl > 0 {
		st.timer = time.AfterFunc(ttl, func() {
			_ = l.Release(context.Background(), key)
		})
	}
	l.locks[key] = st
	return true, nil
}

// Acquire blocks until the lock is obtained or the context is cancelled.
func (l *InMemory) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	for {
		ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		l.mu.Lock()
		st, held := l.locks[key]
		l.mu.Unlock()
		if !held {
			continue
		}
		select {
		case <-st.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release frees the lock for the given key. Releasing an unheld key is a no-op.
func (l *InMemory) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.locks[key]
	if !ok {
		return nil
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	close(st.notify)
	delete(l.locks, key)
	return nil
}

var _ Locker = (*InMemory)(nil)
