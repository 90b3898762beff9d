package fsx

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Filesystem exposes exactly the operations the locking core needs. All
// methods follow os package semantics, including the errors they return.
type Filesystem interface {
	// Mkdir creates a single directory. It must fail with an
	// fs.ErrExist-compatible error when the path already exists; this is
	// the atomic claim primitive the whole design rests on.
	Mkdir(path string, perm os.FileMode) error
	// Stat returns file info for path.
	Stat(path string) (os.FileInfo, error)
	// ReadFile reads the whole file at path.
	ReadFile(path string) ([]byte, error)
	// WriteFile replaces the contents of path.
	WriteFile(path string, data []byte, perm os.FileMode) error
	// Remove removes a file or empty directory.
	Remove(path string) error
	// RemoveAll removes path and anything it contains. Missing paths are
	// not an error.
	RemoveAll(path string) error
	// Chtimes updates the access and modification times of path.
	Chtimes(path string, atime, mtime time.Time) error
	// Realpath resolves symlinks and relative segments to an absolute
	// path. It fails when the path does not exist.
	Realpath(path string) (string, error)
	// Touch creates an empty file at path if nothing exists there yet.
	Touch(path string) error
}

// OS implements Filesystem on the host filesystem.
type OS struct{}

// NewOS returns the real-OS filesystem adapter.
func NewOS() OS { return OS{} }

func (OS) Mkdir(path string, perm os.FileMode) error { return os.Mkdir(path, perm) }

func (OS) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }

func (OS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OS) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (OS) Remove(path string) error { return os.Remove(path) }

func (OS) RemoveAll(path string) error { return os.RemoveAll(path) }

func (OS) Chtimes(path string, atime, mtime time.Time) error {
	return os.Chtimes(path, atime, mtime)
}

func (OS) Realpath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}

func (OS) Touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return f.Close()
}

// IsNotExist reports whether err indicates a missing path, unwrapping
// wrapped errors along the way.
func IsNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

// IsExist reports whether err indicates an already existing path.
func IsExist(err error) bool { return errors.Is(err, fs.ErrExist) }

var _ Filesystem = OS{}
