package latch

import (
	"fmt"

	"github.com/mirkobrombin/go-latch/v1/fsx"
	"github.com/mirkobrombin/go-latch/v1/heartbeat"
	"github.com/mirkobrombin/go-latch/v1/marker"
)

// acquireRecord joins the JSON record marker as a reader or as the writer.
// The read-modify-write is not transactional; under extreme concurrency two
// writers can race the file. That limitation is inherent to coordinating
// through a plain file and is accepted rather than papered over.
func (m *Manager) acquireRecord(resource, markerPath string, cfg config) (*Handle, error) {
	holder, err := marker.NewHolder()
	if err != nil {
		return nil, err
	}

	rec, err := m.store.ReadRecord(markerPath)
	if err != nil {
		return nil, err
	}
	// Crashed same-host holders are pruned by pid probe before deciding
	// conflict, so a dead writer never wedges the lock until staleness.
	rec.PruneDead()

	switch cfg.mode {
	case ModeShared:
		if rec.Writer != nil {
			if m.conflictCounter != nil {
				m.conflictCounter.Inc()
			}
			return nil, fmt.Errorf("%w: writer holds %s", ErrAlreadyLocked, markerPath)
		}
		rec.Readers = append(rec.Readers, holder)
	case ModeExclusive:
		if !rec.Empty() {
			if m.conflictCounter != nil {
				m.conflictCounter.Inc()
			}
			return nil, fmt.Errorf("%w: %s has holders", ErrAlreadyLocked, markerPath)
		}
		rec.Writer = &holder
	}

	if err := m.store.WriteRecord(markerPath, rec); err != nil {
		return nil, err
	}

	h := m.newHandle(resource, markerPath, cfg)
	h.holder = holder
	h.hb = heartbeat.NewRecord(m.store, markerPath, holder, heartbeat.Config{
		Interval:      cfg.update,
		Stale:         cfg.stale,
		OnCompromised: m.compromiseHandler(h, cfg.onCompromised),
	})
	return h, nil
}

// releaseRecord removes one holder from the record, deleting the file when
// the last holder leaves so an empty record never lingers as a false
// "locked" signal.
func (m *Manager) releaseRecord(markerPath string, holder marker.Holder) error {
	rec, err := m.store.ReadRecord(markerPath)
	if err != nil {
		return err
	}
	if !rec.Drop(holder) {
		return fmt.Errorf("%w: %s", ErrNotOwned, markerPath)
	}
	if rec.Empty() {
		if err := m.fs.Remove(markerPath); err != nil && !fsx.IsNotExist(err) {
			return err
		}
		return nil
	}
	return m.store.WriteRecord(markerPath, rec)
}
