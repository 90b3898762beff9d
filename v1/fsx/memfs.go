package fsx

import (
	"io/fs"
	"os"
	"path"
	"sync"
	"time"
)

type memNode struct {
	dir     bool
	data    []byte
	modTime time.Time
}

type memInfo struct {
	name string
	node memNode
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return int64(len(i.node.data)) }
func (i memInfo) ModTime() time.Time { return i.node.modTime }
func (i memInfo) IsDir() bool        { return i.node.dir }
func (i memInfo) Sys() any           { return nil }

func (i memInfo) Mode() fs.FileMode {
	if i.node.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

// MemFS is an in-memory Filesystem for tests. Paths are flat strings; no
// directory hierarchy is enforced beyond what the lock core actually uses.
// Granularity truncates every stored mtime, emulating filesystems with
// second-resolution timestamps. The Fail hook, when set, is consulted before
// every operation and may return an error to inject.
type MemFS struct {
	mu          sync.Mutex
	nodes       map[string]memNode
	Granularity time.Duration
	Fail        func(op, path string) error
}

// NewMemFS returns an empty in-memory filesystem with millisecond mtimes.
func NewMemFS() *MemFS {
	return &MemFS{nodes: make(map[string]memNode), Granularity: time.Millisecond}
}

func (m *MemFS) now() time.Time {
	t := time.Now()
	if m.Granularity > 0 {
		t = t.Truncate(m.Granularity)
	}
	return t
}

func (m *MemFS) fail(op, path string) error {
	if m.Fail != nil {
		return m.Fail(op, path)
	}
	return nil
}

func (m *MemFS) Mkdir(p string, perm os.FileMode) error {
	if err := m.fail("mkdir", p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[p]; ok {
		return &os.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
	}
	m.nodes[p] = memNode{dir: true, modTime: m.now()}
	return nil
}

func (m *MemFS) Stat(p string) (os.FileInfo, error) {
	if err := m.fail("stat", p); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[p]
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}
	return memInfo{name: path.Base(p), node: n}, nil
}

func (m *MemFS) ReadFile(p string) ([]byte, error) {
	if err := m.fail("read", p); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[p]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

func (m *MemFS) WriteFile(p string, data []byte, perm os.FileMode) error {
	if err := m.fail("write", p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.nodes[p] = memNode{data: buf, modTime: m.now()}
	return nil
}

func (m *MemFS) Remove(p string) error {
	if err := m.fail("remove", p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[p]; !ok {
		return &os.PathError{Op: "remove", Path: p, Err: fs.ErrNotExist}
	}
	delete(m.nodes, p)
	return nil
}

func (m *MemFS) RemoveAll(p string) error {
	if err := m.fail("removeall", p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, p)
	return nil
}

func (m *MemFS) Chtimes(p string, atime, mtime time.Time) error {
	if err := m.fail("chtimes", p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[p]
	if !ok {
		return &os.PathError{Op: "chtimes", Path: p, Err: fs.ErrNotExist}
	}
	if m.Granularity > 0 {
		mtime = mtime.Truncate(m.Granularity)
	}
	n.modTime = mtime
	m.nodes[p] = n
	return nil
}

// Realpath returns the path unchanged when it exists. MemFS has no symlinks.
func (m *MemFS) Realpath(p string) (string, error) {
	if err := m.fail("realpath", p); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[p]; !ok {
		return "", &os.PathError{Op: "realpath", Path: p, Err: fs.ErrNotExist}
	}
	return p, nil
}

func (m *MemFS) Touch(p string) error {
	if err := m.fail("touch", p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[p]; ok {
		return nil
	}
	m.nodes[p] = memNode{modTime: m.now()}
	return nil
}

// SetModTime backdates or advances a node's mtime directly, bypassing
// granularity truncation. Tests use it to simulate stale markers.
func (m *MemFS) SetModTime(p string, t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[p]
	if !ok {
		return false
	}
	n.modTime = t
	m.nodes[p] = n
	return true
}

// Exists reports whether a node is present.
func (m *MemFS) Exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[p]
	return ok
}

var _ Filesystem = (*MemFS)(nil)
