package mtime

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mirkobrombin/go-latch/v1/fsx"
)

// Granularities the probe can report.
const (
	Second      = time.Second
	Millisecond = time.Millisecond
)

// Probe measures the mtime resolution of the filesystem holding path by
// writing a timestamp with a non-zero sub-second component and reading it
// back. It returns the detected granularity and the mtime actually stored,
// which callers should record as the path's current modification time.
func Probe(fs fsx.Filesystem, path string) (time.Duration, time.Time, error) {
	probed := time.Now()
	if probed.Nanosecond()%int(time.Second) < int(time.Millisecond) {
		// Make sure the reference instant carries sub-second information,
		// otherwise a millisecond filesystem would look like a second one.
		probed = probed.Add(5 * time.Millisecond)
	}
	if err := fs.Chtimes(path, probed, probed); err != nil {
		return 0, time.Time{}, err
	}
	info, err := fs.Stat(path)
	if err != nil {
		return 0, time.Time{}, err
	}
	stored := info.ModTime()
	if stored.Nanosecond() == 0 {
		return Second, stored, nil
	}
	return Millisecond, stored, nil
}

var (
	mu         sync.Mutex
	cached     time.Duration
	hasCached  bool
	probeGroup singleflight.Group
)

// CachedProbe behaves like Probe but measures the filesystem only once per
// process; concurrent callers share a single in-flight probe. Subsequent
// calls still touch the path so the returned mtime stays accurate.
func CachedProbe(fs fsx.Filesystem, path string) (time.Duration, time.Time, error) {
	mu.Lock()
	known := hasCached
	gran := cached
	mu.Unlock()

	if known {
		now := Truncate(time.Now(), gran)
		if err := fs.Chtimes(path, now, now); err != nil {
			return 0, time.Time{}, err
		}
		return gran, now, nil
	}

	type result struct {
		gran  time.Duration
		mtime time.Time
	}
	v, err, _ := probeGroup.Do(path, func() (any, error) {
		g, m, err := Probe(fs, path)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		cached = g
		hasCached = true
		mu.Unlock()
		return result{gran: g, mtime: m}, nil
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	r := v.(result)
	return r.gran, r.mtime, nil
}

// ResetCache forgets the cached granularity. Tests use it between
// filesystems with different resolutions.
func ResetCache() {
	mu.Lock()
	hasCached = false
	cached = 0
	mu.Unlock()
}

// Truncate floors t to the given granularity. With second resolution the
// heartbeat must write whole-second timestamps or the read-back comparison
// would always report drift.
func Truncate(t time.Time, gran time.Duration) time.Time {
	if gran <= 0 {
		return t
	}
	return t.Truncate(gran)
}
