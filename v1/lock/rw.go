package lock

import (
	"context"
	"sync"

	"github.com/mirkobrombin/go-latch/v1/rwcoord"
)

// KeyedRW provides per-key reader/writer locks within one process. Keys
// share nothing: readers of one key never block writers of another. It is
// the convenience layer over the rwcoord fairness queue for callers that
// want shared/exclusive semantics without a cross-process record file.
type KeyedRW struct {
	mu    sync.Mutex
	locks map[string]*rwcoord.RW
}

// NewKeyedRW returns an empty keyed coordinator.
func NewKeyedRW() *KeyedRW {
	return &KeyedRW{locks: make(map[string]*rwcoord.RW)}
}

func (k *KeyedRW) coord(key string) *rwcoord.RW {
	k.mu.Lock()
	defer k.mu.Unlock()
	rw, ok := k.locks[key]
	if !ok {
		rw = rwcoord.New()
		k.locks[key] = rw
	}
	return rw
}

// RLock acquires a shared slot on key.
func (k *KeyedRW) RLock(ctx context.Context, key string) error {
	return k.coord(key).RLock(ctx)
}

// RUnlock releases a shared slot on key.
func (k *KeyedRW) RUnlock(key string) {
	k.coord(key).RUnlock()
}

// Lock acquires the exclusive slot on key.
func (k *KeyedRW) Lock(ctx context.Context, key string) error {
	return k.coord(key).Lock(ctx)
}

// Unlock releases the exclusive slot on key.
func (k *KeyedRW) Unlock(key string) {
	k.coord(key).Unlock()
}
