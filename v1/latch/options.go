package latch

import "time"

// Mode selects how a lock is represented on disk.
type Mode int

const (
	// ModeDir is the default: an exclusive lock backed by a directory
	// marker, claimed atomically with mkdir.
	ModeDir Mode = iota
	// ModeShared joins the reader set of a JSON record marker. Any number
	// of readers may hold the lock while no writer does.
	ModeShared
	// ModeExclusive takes the writer slot of a JSON record marker,
	// conflicting with every other reader and writer.
	ModeExclusive
)

const (
	// MinStale is the floor for the staleness threshold. Anything lower
	// invites false reclamation from clock and mtime resolution noise.
	MinStale = 2 * time.Second

	defaultStale   = 10 * time.Second
	minUpdate      = time.Second
	defaultRetries = 0
)

type config struct {
	stale         time.Duration
	update        time.Duration
	updateSet     bool
	retries       int
	backoff       func(attempt int) time.Duration
	realpath      bool
	lockfilePath  string
	mode          Mode
	onCompromised func(error)
}

// Option configures a single acquisition or check.
type Option func(*config)

// WithStale sets the staleness threshold other processes use to decide this
// lock was abandoned. Values below MinStale are raised to MinStale.
func WithStale(d time.Duration) Option {
	return func(c *config) { c.stale = d }
}

// WithUpdate sets the heartbeat interval. It is clamped between one second
// and half the staleness threshold; the default is half the threshold.
func WithUpdate(d time.Duration) Option {
	return func(c *config) { c.update = d; c.updateSet = true }
}

// WithRetries sets how many extra acquisition attempts are made when the
// lock is contended. Only contention is retried; missing resources and I/O
// errors abort immediately.
func WithRetries(n int) Option {
	return func(c *config) { c.retries = n }
}

// WithBackoff sets the delay before retry attempt n (zero-based).
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *config) { c.backoff = fn }
}

// WithRealpath controls path resolution. When true (the default) the
// resource must exist and symlinks are resolved so aliases of the same file
// contend on one marker. When false the literal path is used and the
// resource file is created empty if absent.
func WithRealpath(enabled bool) Option {
	return func(c *config) { c.realpath = enabled }
}

// WithLockfilePath overrides the marker location, which otherwise is the
// resource path suffixed with ".lock".
func WithLockfilePath(path string) Option {
	return func(c *config) { c.lockfilePath = path }
}

// WithMode selects the lock representation. See Mode.
func WithMode(m Mode) Option {
	return func(c *config) { c.mode = m }
}

// WithOnCompromised installs a handler for post-acquisition loss of the
// lock. Without a handler a compromised lock panics: silently continuing
// without protection is never the right default.
func WithOnCompromised(fn func(error)) Option {
	return func(c *config) { c.onCompromised = fn }
}

func newConfig(opts []Option) config {
	c := config{
		stale:    defaultStale,
		retries:  defaultRetries,
		realpath: true,
		backoff:  defaultBackoff,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.stale < MinStale {
		c.stale = MinStale
	}
	if !c.updateSet {
		c.update = c.stale / 2
	}
	if c.update > c.stale/2 {
		c.update = c.stale / 2
	}
	if c.update < minUpdate {
		c.update = minUpdate
	}
	return c
}

// defaultBackoff doubles from 100ms per attempt, capped at two seconds.
func defaultBackoff(attempt int) time.Duration {
	d := 100 * time.Millisecond << uint(attempt)
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}
