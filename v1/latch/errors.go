package latch

import (
	"errors"

	"github.com/mirkobrombin/go-latch/v1/heartbeat"
	"github.com/mirkobrombin/go-latch/v1/marker"
)

var (
	// ErrAlreadyLocked signals contention: another holder owns the lock and
	// it is not stale. It is the only error the retry policy retries.
	ErrAlreadyLocked = errors.New("latch: already locked")
	// ErrNotFound is returned when the resource to lock does not exist.
	ErrNotFound = errors.New("latch: resource not found")
	// ErrNotOwned is returned when releasing a lock this process never held.
	ErrNotOwned = errors.New("latch: lock not owned")
	// ErrCompromised reports post-acquisition loss of a lock's protection.
	// It matches errors reported by the heartbeat scheduler.
	ErrCompromised = heartbeat.ErrCompromised
	// ErrCorrupted reports an unparseable lock record. It matches errors
	// surfaced by the marker store.
	ErrCorrupted = marker.ErrCorrupted
)
