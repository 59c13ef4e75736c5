package fuzzycache

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/fuzzycache/internal/store"
	"github.com/calvinalkan/fuzzycache/pkg/fs"
)

// Cache is a persistent key → []V map with exact and fuzzy lookup.
//
// A Cache is either open or closed. [New] opens it unless [WithoutAutoOpen]
// is given; [Cache.Close] flushes and releases the store. All methods are
// safe for concurrent use.
type Cache[V any] struct {
	path string
	lock *PathLock
	opts options

	mu      sync.RWMutex // guards h and cleanup
	h       *handle
	cleanup runtime.Cleanup
}

// handle is the per-open state. It never points back at its Cache so that
// an abandoned open Cache can still be collected and its handle released.
type handle struct {
	path     string
	store    store.Store
	lock     *PathLock
	procLock bool
	logger   zerolog.Logger
}

// New builds a cache for the store file at path.
//
// The path is "~"-expanded, made absolute and symlink-resolved; missing parent
// directories are created. Unless [WithoutAutoOpen] is given the store is
// opened before New returns.
//
// Possible errors:
//   - [ErrInvalidConfiguration]: empty or unexpandable path, unknown backend
//   - [ErrIO]: parent directory could not be created, store failed to open
//   - [ErrBusy]: see [WithProcessLock]
func New[V any](path string, opts ...Option) (*Cache[V], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.backend != BackendSQLite && o.backend != BackendSnapshot {
		return nil, fmt.Errorf("backend %s: %w", o.backend, ErrInvalidConfiguration)
	}

	canonical, err := resolvePath(o.fs, path)
	if err != nil {
		o.logger.Error().Err(err).Str("path", path).Msg("cannot set up cache")

		return nil, err
	}

	c := &Cache[V]{
		path: canonical,
		lock: o.registry.LockFor(canonical),
		opts: o,
	}

	if o.autoOpen {
		err = c.Open()
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// With opens the cache at path, calls fn and closes the cache again, also
// when fn fails or panics. Errors from fn and Close are joined.
func With[V any](path string, fn func(c *Cache[V]) error, opts ...Option) (err error) {
	opts = append(opts[:len(opts):len(opts)], func(o *options) { o.autoOpen = true })

	c, err := New[V](path, opts...)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, c.Close())
	}()

	return fn(c)
}

// Path returns the canonical store path.
func (c *Cache[V]) Path() string {
	return c.path
}

// Threshold returns the fuzzy match threshold.
func (c *Cache[V]) Threshold() float64 {
	return c.opts.threshold
}

// Backend returns the store format in use.
func (c *Cache[V]) Backend() Backend {
	return c.opts.backend
}

// IsOpen reports whether the cache is open.
func (c *Cache[V]) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.h != nil
}

// Open opens the backing store, creating it if needed, and rebuilds the key
// index from the store's keys. Opening an open cache logs a warning and
// returns nil.
func (c *Cache[V]) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.h != nil {
		c.opts.logger.Warn().Str("path", c.path).Msg("cache already open")

		return nil
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	procLock, err := c.acquireProcessLock()
	if err != nil {
		return err
	}

	h := &handle{
		path:     c.path,
		lock:     c.lock,
		procLock: procLock,
		logger:   c.opts.logger,
	}

	h.store, err = c.openStore()
	if err != nil {
		return errors.Join(fmt.Errorf("open %s: %w: %w", c.path, ErrIO, err), h.releaseProcessLock())
	}

	keys, err := h.store.Keys()
	if err != nil {
		return errors.Join(fmt.Errorf("read keys of %s: %w: %w", c.path, ErrIO, err), h.release())
	}

	if keys == nil {
		keys = []string{}
	}

	c.lock.keys = keys
	c.h = h
	c.cleanup = runtime.AddCleanup(c, releaseAbandoned, h)

	c.opts.logger.Debug().
		Str("path", c.path).
		Str("backend", c.opts.backend.String()).
		Int("keys", len(keys)).
		Msg("cache opened")

	return nil
}

// Close flushes pending writes and releases the store. Closing a closed
// cache logs a warning and returns nil. The cache counts as closed even when
// Close returns an error.
func (c *Cache[V]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.h == nil {
		c.opts.logger.Warn().Str("path", c.path).Msg("cache already closed")

		return nil
	}

	h := c.h
	c.h = nil
	c.cleanup.Stop()

	c.lock.Lock()
	err := h.release()
	c.lock.Unlock()

	if err != nil {
		return fmt.Errorf("close %s: %w: %w", c.path, ErrIO, err)
	}

	c.opts.logger.Debug().Str("path", c.path).Msg("cache closed")

	return nil
}

func (c *Cache[V]) openStore() (store.Store, error) {
	switch c.opts.backend {
	case BackendSnapshot:
		return store.OpenSnapshot(c.opts.fs, c.path, &c.lock.writes)
	default:
		return store.OpenSQLite(context.Background(), c.path)
	}
}

// acquireProcessLock takes the interprocess lock for the first handle on the
// path and bumps the holder count. Caller holds c.lock.
func (c *Cache[V]) acquireProcessLock() (bool, error) {
	if !c.opts.processLock {
		return false, nil
	}

	if c.lock.holders == 0 {
		lk, err := fs.NewLocker(c.opts.fs).TryLock(c.path + ".lock")
		if errors.Is(err, fs.ErrWouldBlock) {
			return false, fmt.Errorf("%s is open in another process: %w", c.path, ErrBusy)
		}

		if err != nil {
			return false, fmt.Errorf("lock %s: %w: %w", c.path, ErrIO, err)
		}

		c.lock.procLock = lk
	}

	c.lock.holders++

	return true, nil
}

// release closes the store and drops this handle's share of the process
// lock. Caller holds h.lock.
func (h *handle) release() error {
	closeErr := h.store.Close()

	return errors.Join(closeErr, h.releaseProcessLock())
}

func (h *handle) releaseProcessLock() error {
	if !h.procLock {
		return nil
	}

	h.procLock = false
	h.lock.holders--

	if h.lock.holders > 0 || h.lock.procLock == nil {
		return nil
	}

	err := h.lock.procLock.Close()
	h.lock.procLock = nil

	return err
}

// releaseAbandoned runs when an open Cache became unreachable without Close.
func releaseAbandoned(h *handle) {
	h.lock.Lock()
	err := h.release()
	h.lock.Unlock()

	h.logger.Warn().Err(err).Str("path", h.path).Msg("cache was not closed; released by cleanup")
}
