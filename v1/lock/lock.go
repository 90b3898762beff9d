package lock

import (
	"context"
	"time"
)

// Locker is the backend-independent locking contract. A ttl of zero means
// the lock has no automatic expiry and lives until Release.
type Locker interface {
	// TryLock attempts to obtain the lock without waiting. It returns true
	// on success.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Acquire blocks until the lock is obtained or the context is cancelled.
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	// Release frees the lock for the given key.
	Release(ctx context.Context, key string) error
}
