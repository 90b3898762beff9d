package exitguard

import (
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
)

// Guard tracks cleanup functions for held locks and runs them all when a
// termination signal arrives. The signal handler is registered when the
// first cleanup is tracked and released when the last one is untracked, so
// an idle process keeps no handler installed.
type Guard struct {
	mu       sync.Mutex
	cleanups map[string]func()
	sigs     chan os.Signal
	done     chan struct{}

	// exit is called after cleanups ran; overridable for tests.
	exit func(sig os.Signal)
}

// New returns an independent guard. Most callers share Default instead.
func New() *Guard {
	return &Guard{cleanups: make(map[string]func()), exit: reraise}
}

var (
	defaultOnce  sync.Once
	defaultGuard *Guard
)

// Default returns the process-wide guard.
func Default() *Guard {
	defaultOnce.Do(func() { defaultGuard = New() })
	return defaultGuard
}

// Track registers cleanup under id, installing the signal handler if this is
// the first tracked entry.
func (g *Guard) Track(id string, cleanup func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cleanups[id] = cleanup
	if g.sigs != nil {
		return
	}
	g.sigs = make(chan os.Signal, 1)
	g.done = make(chan struct{})
	signal.Notify(g.sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go g.wait(g.sigs, g.done)
}

// Untrack removes the cleanup for id. When no entries remain the signal
// handler is released so the guard never outlives the last held lock.
func (g *Guard) Untrack(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.cleanups, id)
	if len(g.cleanups) == 0 && g.sigs != nil {
		signal.Stop(g.sigs)
		close(g.done)
		g.sigs = nil
		g.done = nil
	}
}

// Tracked reports the number of registered cleanups.
func (g *Guard) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cleanups)
}

func (g *Guard) wait(sigs chan os.Signal, done chan struct{}) {
	select {
	case sig := <-sigs:
		g.runCleanups()
		g.exit(sig)
	case <-done:
	}
}

// runCleanups executes every tracked cleanup synchronously, in stable order
// so behavior under the signal handler is reproducible.
func (g *Guard) runCleanups() {
	g.mu.Lock()
	ids := make([]string, 0, len(g.cleanups))
	for id := range g.cleanups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, g.cleanups[id])
	}
	g.cleanups = make(map[string]func())
	g.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

