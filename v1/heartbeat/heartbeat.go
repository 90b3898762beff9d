package heartbeat

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mirkobrombin/go-latch/v1/fsx"
	"github.com/mirkobrombin/go-latch/v1/marker"
	"github.com/mirkobrombin/go-latch/v1/metrics"
	"github.com/mirkobrombin/go-latch/v1/mtime"
)

// ErrCompromised reports that a held lock's protection was lost: its marker
// vanished, was overtaken by another process, or could not be refreshed for
// longer than the staleness threshold.
var ErrCompromised = errors.New("heartbeat: lock compromised")

// retryDelay is the shortened delay used after a transient refresh failure.
const retryDelay = time.Second

// Config carries the per-session heartbeat parameters.
type Config struct {
	// Interval between refreshes while everything is healthy.
	Interval time.Duration
	// Stale is the reclamation threshold other processes apply. Failing to
	// refresh for longer than this means the lock can no longer be trusted.
	Stale time.Duration
	// Granularity of the filesystem's mtimes, from the precision probe.
	Granularity time.Duration
	// OnCompromised receives the terminal error. Required.
	OnCompromised func(error)
}

// Scheduler refreshes one session's marker until stopped or compromised.
type Scheduler struct {
	fs   fsx.Filesystem
	path string
	cfg  Config

	// beat performs one refresh and reports whether the compromise check
	// failed terminally. Directory and record markers differ only here.
	beat func() error

	mu          sync.Mutex
	timer       *time.Timer
	stopped     bool
	lastWritten time.Time
	lastOK      time.Time
}

// NewDir returns a scheduler for a directory marker. lastWritten is the
// marker mtime recorded at acquisition; every tick verifies the marker still
// carries the timestamp this session wrote last.
func NewDir(fs fsx.Filesystem, path string, lastWritten time.Time, cfg Config) *Scheduler {
	s := &Scheduler{fs: fs, path: path, cfg: cfg, lastWritten: lastWritten, lastOK: time.Now()}
	s.beat = s.beatDir
	return s
}

// NewRecord returns a scheduler for a record marker held by h. The record is
// rewritten with a fresh Updated stamp on every tick; drift is detected by
// our holder entry disappearing from the record rather than by mtime
// comparison, since concurrent readers legitimately rewrite the same file.
func NewRecord(store *marker.Store, path string, h marker.Holder, cfg Config) *Scheduler {
	s := &Scheduler{fs: store.Filesystem(), path: path, cfg: cfg, lastOK: time.Now()}
	s.beat = func() error {
		rec, err := store.ReadRecord(path)
		if err != nil {
			return err
		}
		if !rec.Contains(h) {
			return fmt.Errorf("%w: holder evicted from %s", ErrCompromised, path)
		}
		return store.WriteRecord(path, rec)
	}
	return s
}

// Start schedules the first tick. It must be called at most once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	metrics.HeartbeatGauge.Inc()
	s.timer = time.AfterFunc(s.cfg.Interval, s.tick)
}

// Stop halts the heartbeat. Once Stop returns no further refreshes are
// scheduled and no new compromise callback will fire. Safe to call any
// number of times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		metrics.HeartbeatGauge.Dec()
	}
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	err := s.beat()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	switch {
	case err == nil:
		s.lastOK = time.Now()
		s.timer = time.AfterFunc(s.cfg.Interval, s.tick)
	case errors.Is(err, ErrCompromised):
		s.compromiseLocked(err)
	case fsx.IsNotExist(err):
		s.compromiseLocked(fmt.Errorf("%w: marker removed: %s", ErrCompromised, s.path))
	case time.Since(s.lastOK) > s.cfg.Stale:
		s.compromiseLocked(fmt.Errorf("%w: not refreshed within %v: %v", ErrCompromised, s.cfg.Stale, err))
	default:
		// Transient failure, still inside the staleness window. Retry on a
		// short leash so a single hiccup does not cost a full interval.
		delay := retryDelay
		if s.cfg.Interval < delay {
			delay = s.cfg.Interval
		}
		s.timer = time.AfterFunc(delay, s.tick)
	}
}

// compromiseLocked marks the scheduler dead and reports err. Caller holds mu;
// the callback runs outside it so a handler may call Stop without deadlock.
func (s *Scheduler) compromiseLocked(err error) {
	s.stopped = true
	metrics.HeartbeatGauge.Dec()
	metrics.HeartbeatCompromisedCounter.Inc()
	cb := s.cfg.OnCompromised
	go cb(err)
}

func (s *Scheduler) beatDir() error {
	observed, err := s.fs.Stat(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	last := s.lastWritten
	s.mu.Unlock()
	if !observed.ModTime().Equal(last) {
		return fmt.Errorf("%w: marker overtaken at %s (saw %v, wrote %v)",
			ErrCompromised, s.path, observed.ModTime(), last)
	}
	now := mtime.Truncate(time.Now(), s.cfg.Granularity)
	if err := s.fs.Chtimes(s.path, now, now); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastWritten = now
	s.mu.Unlock()
	return nil
}
