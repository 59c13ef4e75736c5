// Package store holds the persistent maps behind a fuzzycache.Cache.
//
// A store maps exact string keys to opaque encoded item sequences. Stores are
// not safe for concurrent use; the cache serializes every call with the
// per-path lock.
package store

import "errors"

// Store is a durable string → bytes map.
type Store interface {
	// Keys returns every key, sorted byte-wise ascending.
	Keys() ([]string, error)

	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)

	// Put creates or overwrites key. It is durable when it returns.
	Put(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Sync flushes anything the store still buffers.
	Sync() error

	// Close syncs and releases the handle. Further calls fail with [ErrClosed].
	Close() error
}

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")

	// ErrIncompatible is returned when the file was written by a newer
	// schema or is not a store file at all.
	ErrIncompatible = errors.New("store: incompatible")
)
