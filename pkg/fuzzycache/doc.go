// Package fuzzycache is a small persistent key → item-list cache with exact
// and fuzzy (edit-distance) lookup.
//
// Keys are case-insensitive: every key and query is lower-cased. Each key
// holds an ordered list of items; [Cache.Add] appends, [Cache.Replace]
// overwrites. Items are stored as JSON, so V must round-trip through
// encoding/json.
//
// # Basic Usage
//
//	c, err := fuzzycache.New[int]("~/.cache/fruit.db", fuzzycache.WithFuzzyThreshold(0.8))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	_ = c.Add("apple", 1)
//	_ = c.Add("Apple", 2)
//
//	exact, _ := c.Get("apple")      // {"apple": [1 2]}
//	fuzzy, _ := c.GetFuzzy("aple")  // {"apple": [1 2]}
//
// [With] opens a cache, runs a function and always closes it.
//
// # Concurrency
//
// Every [Cache] bound to the same file, however its path was spelled, shares
// one lock from the [LockRegistry]. All reads and writes hold it, so handles
// in one process never interleave inside an operation and concurrent
// [Cache.Add] calls never lose items. The lock is process-local;
// [WithProcessLock] refuses to open a file another process already has open.
//
// # Error Handling
//
//   - [ErrInvalidConfiguration]: bad constructor arguments (empty path).
//   - [ErrIO]: directory creation, store open/close or store I/O failed.
//   - [ErrNotOpen]: a data operation was called on a closed cache.
//   - [ErrBusy]: [WithProcessLock] is set and another process holds the file.
//
// Opening an open cache or closing a closed one is a logged no-op.
package fuzzycache
