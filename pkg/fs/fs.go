// Package fs is the small filesystem seam used by fuzzycache.
//
// It provides:
//   - [FS]: the operations the stores and the engine need
//   - [Real]: the production implementation backed by [os]
//   - [AtomicWriter]: durable replace-by-rename writes
//   - [Locker]: advisory flock(2) locks on dedicated lock files
//
// Tests swap [FS] to inject failures without touching the real disk layout.
package fs

import (
	"io"
	"os"
)

// File is an open file. It is satisfied by [os.File].
//
// [File.Fd] must return a real OS descriptor usable with flock until the file
// is closed; [Locker] depends on it.
type File interface {
	io.ReadWriteCloser

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS mirrors the subset of the [os] package used by the cache.
//
// Paths use OS semantics (like [os] and path/filepath), not the slash-separated
// paths of io/fs. Implementations must be safe for concurrent use.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with the given flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads a whole file. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename moves a file. Atomic on the same filesystem. See [os.Rename].
	Rename(oldpath, newpath string) error
}

var _ File = (*os.File)(nil)
