package fuzzycache

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/fuzzycache/pkg/fs"
)

// DefaultFuzzyThreshold is the minimum [Similarity] a key needs to be
// returned by [Cache.GetFuzzy] unless [WithFuzzyThreshold] says otherwise.
const DefaultFuzzyThreshold = 0.75

// Backend selects the on-disk format of the store.
type Backend int

const (
	// BackendSQLite stores entries in a SQLite database (WAL mode). Default.
	BackendSQLite Backend = iota

	// BackendSnapshot stores all entries in one gob file that is atomically
	// rewritten on every mutation. Fine for small caches, no cgo driver.
	BackendSnapshot
)

// String returns the name used in config files and flags.
func (b Backend) String() string {
	switch b {
	case BackendSQLite:
		return "sqlite"
	case BackendSnapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend is the inverse of [Backend.String].
func ParseBackend(name string) (Backend, error) {
	switch name {
	case "sqlite", "":
		return BackendSQLite, nil
	case "snapshot":
		return BackendSnapshot, nil
	default:
		return 0, fmt.Errorf("unknown backend %q: %w", name, ErrInvalidConfiguration)
	}
}

type options struct {
	threshold   float64
	autoOpen    bool
	registry    LockRegistry
	backend     Backend
	logger      zerolog.Logger
	fs          fs.FS
	processLock bool
}

func defaultOptions() options {
	return options{
		threshold: DefaultFuzzyThreshold,
		autoOpen:  true,
		registry:  defaultRegistry,
		backend:   BackendSQLite,
		logger:    zerolog.Nop(),
		fs:        fs.NewReal(),
	}
}

// Option configures [New].
type Option func(*options)

// WithFuzzyThreshold sets the minimum similarity for fuzzy matches. The value
// is kept as given: values above 1 match nothing, values at or below 0 match
// every key.
func WithFuzzyThreshold(t float64) Option {
	return func(o *options) { o.threshold = t }
}

// WithoutAutoOpen leaves the cache closed after [New]; call [Cache.Open].
func WithoutAutoOpen() Option {
	return func(o *options) { o.autoOpen = false }
}

// WithRegistry replaces [DefaultRegistry]. Caches only share locks with
// caches built from the same registry.
func WithRegistry(r LockRegistry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithBackend selects the store format. Every handle on one file must use
// the same backend.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithLogger sets the logger for lifecycle warnings and debug records.
// Defaults to a disabled logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFS replaces the filesystem used for directory creation, the snapshot
// backend and the process lock.
func WithFS(fsys fs.FS) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithProcessLock makes [Cache.Open] take an exclusive flock on
// "<path>.lock" so that a second process opening the same file fails with
// [ErrBusy]. Handles inside one process share the flock.
func WithProcessLock() Option {
	return func(o *options) { o.processLock = true }
}
