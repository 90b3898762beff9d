package latch

import (
	"sync"

	"github.com/mirkobrombin/go-latch/v1/heartbeat"
	"github.com/mirkobrombin/go-latch/v1/marker"
)

// Handle is one held lock session. It is owned by the caller that acquired
// it; Release is idempotent.
type Handle struct {
	m        *Manager
	id       string
	resource string
	marker   string
	mode     Mode
	holder   marker.Holder
	hb       *heartbeat.Scheduler

	mu       sync.Mutex
	released bool
	err      error
	done     chan struct{}
}

// Resource returns the resolved path this session locks.
func (h *Handle) Resource() string { return h.resource }

// MarkerPath returns the on-disk location of the session's marker.
func (h *Handle) MarkerPath() string { return h.marker }

// Done is closed when the session ends, whether by Release or by
// compromise. After Done is closed, Err reports why.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns nil for a cleanly released session and the compromise error
// otherwise. It is meaningful once Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// terminate flips the session to released and records err. It reports false
// when the session was already over, making release and compromise mutually
// idempotent.
func (h *Handle) terminate(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return false
	}
	h.released = true
	h.err = err
	close(h.done)
	return true
}

// Release stops the heartbeat and removes this session's claim from the
// marker. Further calls are no-ops returning nil.
func (h *Handle) Release() error {
	if !h.terminate(nil) {
		return nil
	}
	h.hb.Stop()
	h.m.registry.remove(h)
	h.m.guard.Untrack(h.id)
	if h.m.heldGauge != nil {
		h.m.heldGauge.Dec()
	}
	if h.mode == ModeDir {
		return h.m.store.Release(h.marker)
	}
	return h.m.releaseRecord(h.marker, h.holder)
}

// forceClean is the exit-guard cleanup: best effort, no error reporting,
// safe to run while the process is tearing down.
func (h *Handle) forceClean() {
	h.hb.Stop()
	if h.mode == ModeDir {
		_ = h.m.store.Release(h.marker)
		return
	}
	_ = h.m.releaseRecord(h.marker, h.holder)
}
