package store

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"github.com/calvinalkan/fuzzycache/pkg/fs"
)

const (
	snapshotVersion = 1
	snapshotPerm    = 0o600
)

// snapshotFile is the gob payload written to disk.
type snapshotFile struct {
	Version int
	Entries map[string][]byte
}

// fileStamp identifies one on-disk version of the snapshot file. It catches
// writers outside this process on a best-effort basis: a filesystem that
// reuses inodes and has coarse mtimes can hide a same-size rewrite.
type fileStamp struct {
	info  os.FileInfo
	size  int64
	mtime time.Time
}

func (s fileStamp) same(other fileStamp) bool {
	if s.info == nil || other.info == nil {
		return s.info == nil && other.info == nil
	}

	return os.SameFile(s.info, other.info) && s.size == other.size && s.mtime.Equal(other.mtime)
}

// Snapshot is a [Store] that keeps the whole map in memory and rewrites one
// gob file atomically on every mutation. It suits small key sets.
//
// Before each call it reloads the file if another handle wrote it. Handles in
// one process detect that exactly through a shared write counter; the file
// stamp is the fallback for everything else.
type Snapshot struct {
	fs      fs.FS
	writer  *fs.AtomicWriter
	path    string
	entries map[string][]byte
	stamp   fileStamp
	closed  bool

	// writes counts successful writes by every handle on path. seen is its
	// value as of our last load or write.
	writes *atomic.Uint64
	seen   uint64
}

// OpenSnapshot opens the snapshot file at path, creating an empty one if it
// does not exist. A file that does not decode fails with [ErrIncompatible].
//
// writes is shared by all handles on path in this process; pass nil to rely
// on the file stamp alone.
func OpenSnapshot(fsys fs.FS, path string, writes *atomic.Uint64) (*Snapshot, error) {
	if path == "" {
		return nil, errors.New("open snapshot: path is empty")
	}

	s := &Snapshot{
		fs:     fsys,
		writer: fs.NewAtomicWriter(fsys),
		path:   path,
		writes: writes,
	}

	err := s.load()
	if errors.Is(err, os.ErrNotExist) {
		s.entries = make(map[string][]byte)

		err = s.persist()
	}

	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}

	return s, nil
}

// Path returns the snapshot file path.
func (s *Snapshot) Path() string {
	return s.path
}

func (s *Snapshot) statFile() (fileStamp, error) {
	info, err := s.fs.Stat(s.path)
	if err != nil {
		return fileStamp{}, err
	}

	return fileStamp{info: info, size: info.Size(), mtime: info.ModTime()}, nil
}

func (s *Snapshot) load() error {
	var gen uint64
	if s.writes != nil {
		gen = s.writes.Load()
	}

	stamp, err := s.statFile()
	if err != nil {
		return err
	}

	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var file snapshotFile

	decodeErr := gob.NewDecoder(bytes.NewReader(data)).Decode(&file)
	if decodeErr != nil {
		return fmt.Errorf("decode %s: %w: %w", s.path, ErrIncompatible, decodeErr)
	}

	if file.Version != snapshotVersion {
		return fmt.Errorf("snapshot version %d, want %d: %w", file.Version, snapshotVersion, ErrIncompatible)
	}

	if file.Entries == nil {
		file.Entries = make(map[string][]byte)
	}

	s.entries = file.Entries
	s.stamp = stamp
	s.seen = gen

	return nil
}

// refresh reloads the file if another handle replaced it since our last
// load or write.
func (s *Snapshot) refresh() error {
	if s.closed {
		return ErrClosed
	}

	stamp, err := s.statFile()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	if stamp.same(s.stamp) && (s.writes == nil || s.writes.Load() == s.seen) {
		return nil
	}

	return s.load()
}

func (s *Snapshot) persist() error {
	var buf bytes.Buffer

	err := gob.NewEncoder(&buf).Encode(snapshotFile{Version: snapshotVersion, Entries: s.entries})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	opts := fs.DefaultAtomicWriteOptions()
	opts.Perm = snapshotPerm

	err = s.writer.Write(s.path, &buf, opts)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if s.writes != nil {
		s.seen = s.writes.Add(1)
	}

	stamp, err := s.statFile()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	s.stamp = stamp

	return nil
}

// Keys implements [Store].
func (s *Snapshot) Keys() ([]string, error) {
	err := s.refresh()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys, nil
}

// Get implements [Store].
func (s *Snapshot) Get(key string) ([]byte, bool, error) {
	err := s.refresh()
	if err != nil {
		return nil, false, err
	}

	v, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}

	return bytes.Clone(v), true, nil
}

// Put implements [Store]. On write failure the in-memory map is rolled back.
func (s *Snapshot) Put(key string, value []byte) error {
	err := s.refresh()
	if err != nil {
		return err
	}

	prev, existed := s.entries[key]
	s.entries[key] = bytes.Clone(value)

	err = s.persist()
	if err != nil {
		if existed {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}

		return err
	}

	return nil
}

// Delete implements [Store].
func (s *Snapshot) Delete(key string) error {
	err := s.refresh()
	if err != nil {
		return err
	}

	prev, existed := s.entries[key]
	if !existed {
		return nil
	}

	delete(s.entries, key)

	err = s.persist()
	if err != nil {
		s.entries[key] = prev

		return err
	}

	return nil
}

// Sync is a no-op: every mutation is already durable.
func (s *Snapshot) Sync() error {
	if s.closed {
		return ErrClosed
	}

	return nil
}

// Close implements [Store].
func (s *Snapshot) Close() error {
	if s.closed {
		return ErrClosed
	}

	s.closed = true
	s.entries = nil

	return nil
}

var _ Store = (*Snapshot)(nil)
