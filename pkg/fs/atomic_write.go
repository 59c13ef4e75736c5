package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrDirSync means the parent directory could not be synced after the rename.
// The new content is in place, but may not survive a power loss.
var ErrDirSync = errors.New("dir sync")

// AtomicWriter replaces files by writing a sibling temp file and renaming it
// over the target.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter returns an AtomicWriter operating on fsys.
// Panics if fsys is nil.
func NewAtomicWriter(fsys FS) *AtomicWriter {
	if fsys == nil {
		panic("fs is nil")
	}

	return &AtomicWriter{fs: fsys}
}

// AtomicWriteOptions configures [AtomicWriter.Write].
type AtomicWriteOptions struct {
	// SyncDir syncs the parent directory after the rename.
	SyncDir bool

	// Perm is the final file mode, applied with chmod regardless of umask.
	// Must be non-zero.
	Perm os.FileMode
}

// DefaultAtomicWriteOptions syncs the directory and writes 0o644 files.
func DefaultAtomicWriteOptions() AtomicWriteOptions {
	return AtomicWriteOptions{SyncDir: true, Perm: 0o644}
}

// Write copies r into a temp file next to path, fsyncs it, renames it over
// path and, with opts.SyncDir, fsyncs the directory.
//
// Readers observe either the old or the new content, never a mix. A failed
// directory sync is reported with [ErrDirSync].
func (w *AtomicWriter) Write(path string, r io.Reader, opts AtomicWriteOptions) error {
	if r == nil {
		panic("reader is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	if opts.Perm == 0 {
		return errors.New("opts.Perm must be non-zero")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == "." || base == string(os.PathSeparator) {
		return fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tmp, tmpPath, err := createTempSibling(w.fs, dir, base, opts.Perm)
	if err != nil {
		return err
	}

	discard := func() error {
		return errors.Join(closeFile("temp file", tmpPath, tmp), removeIfExists(w.fs, tmpPath))
	}

	err = tmp.Chmod(opts.Perm)
	if err != nil {
		return errors.Join(fmt.Errorf("chmod temp file %q: %w", tmpPath, err), discard())
	}

	_, err = io.Copy(tmp, r)
	if err != nil {
		return errors.Join(fmt.Errorf("write temp file %q: %w", tmpPath, err), discard())
	}

	err = tmp.Sync()
	if err != nil {
		return errors.Join(fmt.Errorf("sync temp file %q: %w", tmpPath, err), discard())
	}

	err = w.fs.Rename(tmpPath, path)
	if err != nil {
		return errors.Join(fmt.Errorf("rename: %w", err), discard())
	}

	// The temp name is gone after the rename; only the close can fail now.
	_ = discard()

	if opts.SyncDir {
		return syncDir(w.fs, dir)
	}

	return nil
}

const maxTempAttempts = 10000

var tempCounter atomic.Uint64

func createTempSibling(fsys FS, dir, base string, perm os.FileMode) (File, string, error) {
	for range maxTempAttempts {
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, tempCounter.Add(1)))

		f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return f, path, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}

func syncDir(fsys FS, dir string) error {
	d, err := fsys.Open(dir)
	if err != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("open dir %q: %w", dir, err))
	}

	err = d.Sync()
	if err != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("%q: %w", dir, err), closeFile("dir", dir, d))
	}

	return closeFile("dir", dir, d)
}

func closeFile(what, path string, f File) error {
	err := f.Close()
	if err != nil {
		return fmt.Errorf("close %s %q: %w", what, path, err)
	}

	return nil
}

func removeIfExists(fsys FS, path string) error {
	err := fsys.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", path, err)
	}

	return nil
}
