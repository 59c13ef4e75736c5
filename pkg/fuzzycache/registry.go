package fuzzycache

import (
	"sync"
	"sync/atomic"

	"github.com/calvinalkan/fuzzycache/pkg/fs"
)

// Locking architecture
//
//  1. Cache.mu: per-handle open/closed state.
//
//  2. PathLock: one per canonical path, shared by every Cache bound to that
//     path. Held for each store access together with the key index update,
//     so handles on one file never interleave. The key index and the
//     interprocess lock refcount live here because they are per file, not
//     per handle.
//
//  3. Interprocess lock (optional, WithProcessLock): flock on Path+".lock",
//     taken by the first handle that opens the path and dropped by the last
//     one that closes it.
//
// Lock ordering: Cache.mu → PathLock → interprocess lock.

// LockRegistry hands out the shared lock for a canonical path.
//
// Implementations must return the same *PathLock for the same path on every
// call, and must be safe for concurrent use.
type LockRegistry interface {
	LockFor(canonicalPath string) *PathLock
}

// PathLock is the mutual-exclusion lock shared by every [Cache] bound to one
// file. The zero value is ready to use.
type PathLock struct {
	mu sync.Mutex

	// keys is the sorted key index of the file. Guarded by mu.
	keys []string

	// procLock is the held interprocess lock, or nil. holders counts the open
	// handles that share it. Both guarded by mu.
	procLock *fs.Lock
	holders  int

	// writes counts snapshot writes to the file from this process, so a
	// handle can tell that another handle changed it.
	writes atomic.Uint64
}

// Lock implements [sync.Locker].
func (l *PathLock) Lock() { l.mu.Lock() }

// Unlock implements [sync.Locker].
func (l *PathLock) Unlock() { l.mu.Unlock() }

var _ sync.Locker = (*PathLock)(nil)

// Registry is the standard [LockRegistry]. Entries are never removed; the set
// of cache files a process touches is small.
type Registry struct {
	locks sync.Map // map[string]*PathLock
}

// NewRegistry returns an empty registry. Most callers want
// [DefaultRegistry]; a private registry only serializes the caches that
// were given it.
func NewRegistry() *Registry {
	return &Registry{}
}

// LockFor returns the lock for path, creating and registering it if absent.
func (r *Registry) LockFor(canonicalPath string) *PathLock {
	if v, ok := r.locks.Load(canonicalPath); ok {
		return v.(*PathLock) //nolint:forcetypeassert // only *PathLock is stored
	}

	v, _ := r.locks.LoadOrStore(canonicalPath, &PathLock{})

	return v.(*PathLock) //nolint:forcetypeassert // only *PathLock is stored
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	n := 0

	r.locks.Range(func(_, _ any) bool {
		n++

		return true
	})

	return n
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used when no
// [WithRegistry] option is given.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
