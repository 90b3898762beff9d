package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mirkobrombin/go-latch/v1/latch"
)

// pollInterval paces the Acquire wait loop. File markers carry no wakeup
// channel, so blocking acquisition is polling by nature.
const pollInterval = 100 * time.Millisecond

// File implements Locker on the filesystem: keys are file paths and each
// lock is a latch directory marker next to the keyed file. A positive ttl is
// used as the staleness threshold, subject to the latch minimum.
type File struct {
	manager *latch.Manager

	mu      sync.Mutex
	handles map[string]*latch.Handle
}

// NewFile returns a file-backed locker. A nil manager gets a default one on
// the real filesystem.
func NewFile(manager *latch.Manager) *File {
	if manager == nil {
		manager = latch.New()
	}
	return &File{manager: manager, handles: make(map[string]*latch.Handle)}
}

// TryLock attempts to obtain the lock without waiting. It returns true on
// success and false when another process (or this one) holds the key.
func (f *File) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	opts := []latch.Option{latch.WithRealpath(false)}
	if ttl > 0 {
		opts = append(opts, latch.WithStale(ttl))
	}
	h, err := f.manager.TryAcquire(ctx, key, opts...)
	if err != nil {
		if errors.Is(err, latch.ErrAlreadyLocked) {
			return false, nil
		}
		return false, err
	}
	f.mu.Lock()
	f.handles[key] = h
	f.mu.Unlock()
	return true, nil
}

// Acquire blocks until the lock is obtained or the context is cancelled.
func (f *File) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	for {
		ok, err := f.TryLock(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Release frees the lock for the given key. Unheld keys are a no-op.
func (f *File) Release(ctx context.Context, key string) error {
	f.mu.Lock()
	h, ok := f.handles[key]
	delete(f.handles, key)
	f.mu.Unlock()
	if !ok {
		return nil
	}
	return h.Release()
}

var _ Locker = (*File)(nil)
