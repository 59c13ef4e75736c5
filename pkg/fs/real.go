package fs

import (
	"os"
)

// Real implements [FS] on top of the [os] package. Every method is a
// passthrough with identical error semantics.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// Open wraps [os.Open].
func (*Real) Open(path string) (File, error) {
	return os.Open(path)
}

// OpenFile wraps [os.OpenFile].
func (*Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// ReadFile wraps [os.ReadFile].
func (*Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MkdirAll wraps [os.MkdirAll].
func (*Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Stat wraps [os.Stat].
func (*Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Remove wraps [os.Remove].
func (*Real) Remove(path string) error {
	return os.Remove(path)
}

// Rename wraps [os.Rename].
func (*Real) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

var _ FS = (*Real)(nil)
