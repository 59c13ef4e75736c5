package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const sqliteSchemaVersion = 1

// SQLite is a [Store] backed by a single SQLite database file.
type SQLite struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens or creates the database at path.
//
// A file without a schema is initialized; a file with a newer schema version
// fails with [ErrIncompatible].
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection per handle: the cache already serializes access and
	// pragmas are per connection.
	db.SetMaxOpenConns(1)

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	err = applyPragmas(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	err = migrate(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &SQLite{path: path, db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	statements := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, stmt := range statements {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}

	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int

	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	switch {
	case version == sqliteSchemaVersion:
		return nil
	case version > sqliteSchemaVersion:
		return fmt.Errorf("schema version %d newer than %d: %w", version, sqliteSchemaVersion, ErrIncompatible)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migrate txn: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		items BLOB NOT NULL
	) WITHOUT ROWID`)
	if err != nil {
		return fmt.Errorf("create entries table: %w", err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion))
	if err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit migrate txn: %w", err)
	}

	committed = true

	return nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Keys implements [Store].
func (s *SQLite) Keys() ([]string, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query("SELECT key FROM entries ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var keys []string

	for rows.Next() {
		var key string

		err = rows.Scan(&key)
		if err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}

		keys = append(keys, key)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}

	return keys, nil
}

// Get implements [Store].
func (s *SQLite) Get(key string) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, ErrClosed
	}

	var items []byte

	err := s.db.QueryRow("SELECT items FROM entries WHERE key = ?", key).Scan(&items)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}

	return items, true, nil
}

// Put implements [Store].
func (s *SQLite) Put(key string, value []byte) error {
	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.Exec(`INSERT INTO entries (key, items) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET items = excluded.items`, key, value)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	return nil
}

// Delete implements [Store].
func (s *SQLite) Delete(key string) error {
	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.Exec("DELETE FROM entries WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	return nil
}

// Sync checkpoints the WAL into the main database file.
func (s *SQLite) Sync() error {
	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("checkpoint wal: %w", err)
	}

	return nil
}

// Close implements [Store].
func (s *SQLite) Close() error {
	if s.db == nil {
		return ErrClosed
	}

	syncErr := s.Sync()
	closeErr := s.db.Close()
	s.db = nil

	if closeErr != nil {
		closeErr = fmt.Errorf("close sqlite: %w", closeErr)
	}

	return errors.Join(syncErr, closeErr)
}

var _ Store = (*SQLite)(nil)
