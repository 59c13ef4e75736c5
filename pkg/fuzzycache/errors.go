package fuzzycache

import "errors"

// Sentinel errors returned by fuzzycache operations. Match them with
// [errors.Is]; the underlying cause is wrapped alongside.
var (
	// ErrInvalidConfiguration indicates unusable constructor arguments,
	// such as an empty path.
	//
	// This is a programming error.
	ErrInvalidConfiguration = errors.New("fuzzycache: invalid configuration")

	// ErrIO indicates a filesystem or backing store failure: creating the
	// parent directory, opening, reading, writing or closing the store.
	//
	// After a failed mutation the in-memory key index may lag the store.
	// Recovery: [Cache.Close] and [Cache.Open] rebuild the index.
	ErrIO = errors.New("fuzzycache: i/o failure")

	// ErrNotOpen indicates a data operation on a closed [Cache].
	//
	// Recovery: call [Cache.Open] first.
	ErrNotOpen = errors.New("fuzzycache: not open")

	// ErrBusy indicates that [WithProcessLock] is set and another process
	// holds the store's lock file.
	//
	// Recovery: retry later, or stop the other process.
	ErrBusy = errors.New("fuzzycache: busy")
)
