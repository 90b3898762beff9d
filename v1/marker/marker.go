package marker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mirkobrombin/go-latch/v1/fsx"
)

// ErrClaimed is returned by Claim when the marker already exists. It is the
// expected contention signal, not a failure of the store itself.
var ErrClaimed = errors.New("marker: already claimed")

// ErrStillPresent is returned by WaitAbsent when a marker expected to vanish
// never does. Callers treat it the same as contention.
var ErrStillPresent = errors.New("marker: still present")

// Store performs all filesystem operations on lock markers through an
// injected Filesystem.
type Store struct {
	fs fsx.Filesystem
}

// NewStore returns a Store backed by fs.
func NewStore(fs fsx.Filesystem) *Store {
	return &Store{fs: fs}
}

// Filesystem returns the underlying filesystem.
func (s *Store) Filesystem() fsx.Filesystem { return s.fs }

// Claim attempts to create the directory marker at path. Exactly one of any
// number of concurrent claimers succeeds; the rest get ErrClaimed. Errors
// other than "already exists" pass through untouched.
func (s *Store) Claim(path string) error {
	err := s.fs.Mkdir(path, 0o755)
	if err == nil {
		return nil
	}
	if fsx.IsExist(err) || isIsDir(err) {
		return fmt.Errorf("%w: %s", ErrClaimed, path)
	}
	return err
}

// isIsDir catches filesystems that answer EISDIR instead of EEXIST when the
// marker directory is already there.
func isIsDir(err error) bool {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return strings.Contains(pe.Err.Error(), "is a directory")
	}
	return false
}

// Probe stats the marker and returns its modification time.
func (s *Store) Probe(path string) (time.Time, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Release removes the marker. A marker that is already gone counts as
// success; release only has to guarantee the marker no longer exists.
func (s *Store) Release(path string) error {
	if err := s.fs.RemoveAll(path); err != nil && !fsx.IsNotExist(err) {
		return err
	}
	return nil
}

// IsStale reports whether a marker last touched at mtime has outlived the
// given threshold.
func IsStale(mtime time.Time, threshold time.Duration) bool {
	return time.Since(mtime) > threshold
}

// WaitAbsent polls for the marker at path to disappear, at most tries times.
// It exists for the race where a staleness check observed a marker that its
// holder was concurrently releasing: the marker should be gone momentarily,
// but another claimer may also reclaim and recreate it in the same window.
// If the marker outlasts every attempt the conservative answer is
// ErrStillPresent, never a fabricated success.
func (s *Store) WaitAbsent(ctx context.Context, path string, tries int) error {
	for i := 0; i < tries; i++ {
		if _, err := s.fs.Stat(path); err != nil {
			if fsx.IsNotExist(err) {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %s", ErrStillPresent, path)
}
