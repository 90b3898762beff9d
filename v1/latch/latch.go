package latch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirkobrombin/go-latch/v1/exitguard"
	"github.com/mirkobrombin/go-latch/v1/fsx"
	"github.com/mirkobrombin/go-latch/v1/heartbeat"
	"github.com/mirkobrombin/go-latch/v1/marker"
	"github.com/mirkobrombin/go-latch/v1/mtime"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-latch/v1/latch")

// absenceTries bounds the stat retries after a marker was observed by mkdir
// but gone by stat: its holder is mid-release and the churn settles fast.
const absenceTries = 3

// Manager is the acquisition engine. It owns the session registry and the
// exit guard; multiple managers over the same filesystem are independent and
// contend with each other exactly like separate processes.
type Manager struct {
	fs       fsx.Filesystem
	store    *marker.Store
	registry *Registry
	guard    *exitguard.Guard

	traceEnabled bool

	acquireCounter     prometheus.Counter
	conflictCounter    prometheus.Counter
	reclaimCounter     prometheus.Counter
	compromisedCounter prometheus.Counter
	heldGauge          prometheus.Gauge
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFilesystem replaces the real-OS filesystem, letting tests run the
// whole engine against a fake.
func WithFilesystem(fs fsx.Filesystem) ManagerOption {
	return func(m *Manager) { m.fs = fs }
}

// WithRegistry injects the session registry. Managers that share a registry
// share release-by-path visibility.
func WithRegistry(r *Registry) ManagerOption {
	return func(m *Manager) { m.registry = r }
}

// WithGuard injects the exit guard; the default is the process-wide one.
func WithGuard(g *exitguard.Guard) ManagerOption {
	return func(m *Manager) { m.guard = g }
}

// WithTracing enables OpenTelemetry spans on Acquire and Release.
func WithTracing() ManagerOption {
	return func(m *Manager) { m.traceEnabled = true }
}

// WithMetrics enables Prometheus metrics collection using the provided registerer.
func WithMetrics(reg prometheus.Registerer) ManagerOption {
	return func(m *Manager) {
		m.acquireCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latch_acquire_total",
			Help: "Total number of successful lock acquisitions",
		})
		m.conflictCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latch_conflict_total",
			Help: "Total number of contended acquisition attempts",
		})
		m.reclaimCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latch_reclaim_total",
			Help: "Total number of stale markers reclaimed",
		})
		m.compromisedCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latch_compromised_total",
			Help: "Total number of locks whose protection was lost while held",
		})
		m.heldGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "latch_held",
			Help: "Current number of held locks",
		})
		reg.MustRegister(m.acquireCounter, m.conflictCounter, m.reclaimCounter,
			m.compromisedCounter, m.heldGauge)
	}
}

// New returns a Manager on the real filesystem with the process-wide exit
// guard; options override each collaborator.
func New(opts ...ManagerOption) *Manager {
	m := &Manager{fs: fsx.NewOS()}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	if m.guard == nil {
		m.guard = exitguard.Default()
	}
	m.store = marker.NewStore(m.fs)
	return m
}

// Acquire takes the lock for resource, retrying contention per the
// configured policy, and returns a Handle whose Release gives the lock back.
// Missing resources fail with ErrNotFound (unless WithRealpath(false)),
// contention that survives every retry fails with ErrAlreadyLocked.
func (m *Manager) Acquire(ctx context.Context, resource string, opts ...Option) (*Handle, error) {
	cfg := newConfig(opts)
	var span trace.Span
	if m.traceEnabled {
		ctx, span = tracer.Start(ctx, "Latch.Acquire",
			trace.WithAttributes(attribute.String("latch.resource", resource)))
		defer span.End()
	}

	h, err := m.acquire(ctx, resource, cfg)
	if m.traceEnabled {
		if err != nil {
			span.SetAttributes(attribute.String("latch.result", "error"))
		} else {
			span.SetAttributes(attribute.String("latch.result", "acquired"))
		}
	}
	return h, err
}

// TryAcquire is the single-shot variant: one attempt, directory marker only,
// no retry policy. It is what callers want on hot paths where waiting is
// pointless.
func (m *Manager) TryAcquire(ctx context.Context, resource string, opts ...Option) (*Handle, error) {
	cfg := newConfig(opts)
	cfg.retries = 0
	cfg.mode = ModeDir
	return m.acquire(ctx, resource, cfg)
}

func (m *Manager) acquire(ctx context.Context, resource string, cfg config) (*Handle, error) {
	path, err := m.resolve(resource, cfg, true)
	if err != nil {
		return nil, err
	}
	markerPath := markerPathFor(path, cfg)

	var h *Handle
	attempt := func(ctx context.Context) error {
		var aerr error
		if cfg.mode == ModeDir {
			h, aerr = m.acquireDir(ctx, path, markerPath, cfg)
		} else {
			h, aerr = m.acquireRecord(path, markerPath, cfg)
		}
		return aerr
	}
	if err := m.withRetries(ctx, cfg, attempt); err != nil {
		return nil, err
	}

	m.registry.add(h)
	m.guard.Track(h.id, h.forceClean)
	h.hb.Start()
	if m.acquireCounter != nil {
		m.acquireCounter.Inc()
	}
	if m.heldGauge != nil {
		m.heldGauge.Inc()
	}
	return h, nil
}

// withRetries runs attempt until it succeeds, fails terminally, or the
// retry budget is spent. Only contention is retried.
func (m *Manager) withRetries(ctx context.Context, cfg config, attempt func(context.Context) error) error {
	for i := 0; ; i++ {
		err := attempt(ctx)
		if err == nil || !errors.Is(err, ErrAlreadyLocked) {
			return err
		}
		if i >= cfg.retries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.backoff(i)):
		}
	}
}

func (m *Manager) acquireDir(ctx context.Context, resource, markerPath string, cfg config) (*Handle, error) {
	mt, gran, err := m.claimDir(ctx, markerPath, cfg.stale, true)
	if err != nil {
		return nil, err
	}
	h := m.newHandle(resource, markerPath, cfg)
	h.hb = heartbeat.NewDir(m.fs, markerPath, mt, heartbeat.Config{
		Interval:      cfg.update,
		Stale:         cfg.stale,
		Granularity:   gran,
		OnCompromised: m.compromiseHandler(h, cfg.onCompromised),
	})
	return h, nil
}

// claimDir performs one claim round on the directory marker. A stale
// conflicting marker is reclaimed and the claim repeated exactly once with
// staleness disabled, which bounds the reclaim recursion.
func (m *Manager) claimDir(ctx context.Context, markerPath string, stale time.Duration, allowReclaim bool) (time.Time, time.Duration, error) {
	err := m.store.Claim(markerPath)
	if err == nil {
		gran, mt, perr := mtime.CachedProbe(m.fs, markerPath)
		if perr != nil {
			_ = m.store.Release(markerPath)
			return time.Time{}, 0, perr
		}
		return mt, gran, nil
	}
	if !errors.Is(err, marker.ErrClaimed) {
		return time.Time{}, 0, err
	}
	if m.conflictCounter != nil {
		m.conflictCounter.Inc()
	}

	mt, perr := m.store.Probe(markerPath)
	if perr != nil {
		if fsx.IsNotExist(perr) {
			// The marker existed for mkdir but is gone for stat: its holder
			// released between the two calls. Give the churn a moment to
			// settle and report contention; the retry policy takes it from
			// there rather than risking a double acquisition.
			_ = m.store.WaitAbsent(ctx, markerPath, absenceTries)
			return time.Time{}, 0, fmt.Errorf("%w: %s (released mid-claim)", ErrAlreadyLocked, markerPath)
		}
		return time.Time{}, 0, perr
	}
	if !allowReclaim || !marker.IsStale(mt, stale) {
		return time.Time{}, 0, fmt.Errorf("%w: %s", ErrAlreadyLocked, markerPath)
	}

	if m.reclaimCounter != nil {
		m.reclaimCounter.Inc()
	}
	if rerr := m.store.Release(markerPath); rerr != nil {
		return time.Time{}, 0, rerr
	}
	return m.claimDir(ctx, markerPath, 0, false)
}

// resolve canonicalizes the resource path. With realpath enabled the
// resource must exist; otherwise the literal path is used and, when create
// is set, the resource is materialized as an empty file.
func (m *Manager) resolve(resource string, cfg config, create bool) (string, error) {
	if cfg.realpath {
		path, err := m.fs.Realpath(resource)
		if err != nil {
			if fsx.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrNotFound, resource)
			}
			return "", err
		}
		return path, nil
	}
	if create {
		if err := m.fs.Touch(resource); err != nil {
			return "", err
		}
	}
	return resource, nil
}

func markerPathFor(resource string, cfg config) string {
	if cfg.lockfilePath != "" {
		return cfg.lockfilePath
	}
	return resource + ".lock"
}

// Check reports whether resource is currently locked. It never mutates
// anything: an absent marker means unlocked, a present directory marker
// counts only while fresh, and a record marker counts per the queried mode
// (a writer blocks ModeShared, any holder blocks ModeExclusive and ModeDir).
func (m *Manager) Check(ctx context.Context, resource string, opts ...Option) (bool, error) {
	cfg := newConfig(opts)
	path, err := m.resolve(resource, cfg, false)
	if err != nil {
		return false, err
	}
	markerPath := markerPathFor(path, cfg)

	if cfg.mode != ModeDir {
		rec, err := m.store.ReadRecord(markerPath)
		if err != nil {
			return false, err
		}
		if cfg.mode == ModeShared {
			return rec.Writer != nil, nil
		}
		return !rec.Empty(), nil
	}

	mt, err := m.store.Probe(markerPath)
	if err != nil {
		if fsx.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !marker.IsStale(mt, cfg.stale), nil
}

// Release gives back the newest session this manager holds on resource.
// Releasing a resource the manager never locked fails with ErrNotOwned.
func (m *Manager) Release(resource string, opts ...Option) error {
	cfg := newConfig(opts)
	path, err := m.resolve(resource, cfg, false)
	if err != nil {
		return err
	}
	h := m.registry.newest(path)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNotOwned, resource)
	}
	return h.Release()
}

// Held reports how many sessions this manager currently holds.
func (m *Manager) Held() int { return m.registry.Held() }

func (m *Manager) newHandle(resource, markerPath string, cfg config) *Handle {
	return &Handle{
		m:        m,
		id:       uuid.NewString(),
		resource: resource,
		marker:   markerPath,
		mode:     cfg.mode,
		done:     make(chan struct{}),
	}
}

// compromiseHandler adapts the per-session compromise policy: tear the
// session down, then hand the error to the caller's handler, or panic when
// none was supplied. Continuing without protection must never be silent.
func (m *Manager) compromiseHandler(h *Handle, user func(error)) func(error) {
	return func(err error) {
		if !h.terminate(err) {
			return
		}
		m.registry.remove(h)
		m.guard.Untrack(h.id)
		if m.compromisedCounter != nil {
			m.compromisedCounter.Inc()
		}
		if m.heldGauge != nil {
			m.heldGauge.Dec()
		}
		if user != nil {
			user(err)
			return
		}
		panic(err)
	}
}
