package marker

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	uuid "github.com/hashicorp/go-uuid"

	"github.com/mirkobrombin/go-latch/v1/fsx"
)

// ErrCorrupted is returned when a record file cannot be parsed even after
// the bounded re-read retries.
var ErrCorrupted = errors.New("marker: record corrupted")

// readRecordRetries bounds the re-reads tolerated while another holder may be
// mid-write. Partial JSON from a concurrent WriteFile settles quickly; past
// this the file is considered genuinely corrupt.
const readRecordRetries = 5

// Holder identifies one owner of a record marker.
type Holder struct {
	PID      int    `json:"pid"`
	Hostname string `json:"hostname"`
	Nonce    string `json:"nonce"`
}

// NewHolder returns a Holder describing the current process.
func NewHolder() (Holder, error) {
	nonce, err := uuid.GenerateUUID()
	if err != nil {
		return Holder{}, err
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return Holder{PID: os.Getpid(), Hostname: host, Nonce: nonce}, nil
}

// Equal reports whether two holders are the same acquisition.
func (h Holder) Equal(o Holder) bool {
	return h.PID == o.PID && h.Hostname == o.Hostname && h.Nonce == o.Nonce
}

// AliveSameHost reports whether the holder's process still runs, but only
// when the holder was recorded on this host; liveness of remote holders
// cannot be probed and is reported as alive.
func (h Holder) AliveSameHost() bool {
	host, err := os.Hostname()
	if err != nil || host != h.Hostname {
		return true
	}
	return pidAlive(h.PID)
}

// Record is the wire format of a record marker: a JSON file naming the
// current shared readers and the exclusive writer, if any. Timestamps are
// epoch milliseconds. Invariant: Writer set implies Readers empty.
type Record struct {
	Readers []Holder `json:"readers"`
	Writer  *Holder  `json:"writer"`
	Created int64    `json:"created"`
	Updated int64    `json:"updated"`
}

// Empty reports whether the record names no holders at all.
func (r *Record) Empty() bool {
	return r.Writer == nil && len(r.Readers) == 0
}

// Contains reports whether h is one of the record's holders.
func (r *Record) Contains(h Holder) bool {
	if r.Writer != nil && r.Writer.Equal(h) {
		return true
	}
	for _, rd := range r.Readers {
		if rd.Equal(h) {
			return true
		}
	}
	return false
}

// Drop removes h from the record. It reports whether h was present.
func (r *Record) Drop(h Holder) bool {
	if r.Writer != nil && r.Writer.Equal(h) {
		r.Writer = nil
		return true
	}
	for i, rd := range r.Readers {
		if rd.Equal(h) {
			r.Readers = append(r.Readers[:i], r.Readers[i+1:]...)
			return true
		}
	}
	return false
}

// PruneDead drops holders whose same-host process has exited, self-healing
// records left behind by crashes without waiting out a staleness timer.
// It reports whether anything was removed.
func (r *Record) PruneDead() bool {
	changed := false
	if r.Writer != nil && !r.Writer.AliveSameHost() {
		r.Writer = nil
		changed = true
	}
	kept := r.Readers[:0]
	for _, rd := range r.Readers {
		if rd.AliveSameHost() {
			kept = append(kept, rd)
		} else {
			changed = true
		}
	}
	r.Readers = kept
	return changed
}

// ReadRecord loads and parses the record at path. A missing file yields an
// empty record: an absent marker and a marker with no holders mean the same
// thing. Parse failures are retried a bounded number of times before
// surfacing ErrCorrupted, because a concurrent holder may be mid-write.
func (s *Store) ReadRecord(path string) (*Record, error) {
	var lastErr error
	for i := 0; i < readRecordRetries; i++ {
		data, err := s.fs.ReadFile(path)
		if err != nil {
			if fsx.IsNotExist(err) {
				return &Record{}, nil
			}
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			lastErr = err
			time.Sleep(10 * time.Millisecond)
			continue
		}
		return &rec, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrCorrupted, lastErr)
}

// WriteRecord serializes rec and overwrites the record at path, refreshing
// its Updated stamp. Created is set on first write.
func (s *Store) WriteRecord(path string, rec *Record) error {
	now := time.Now().UnixMilli()
	if rec.Created == 0 {
		rec.Created = now
	}
	rec.Updated = now
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.fs.WriteFile(path, data, 0o644)
}
