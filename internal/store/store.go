package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the connection handle: one owned native session plus its
// lifecycle (open → closed).
type Store struct {
	mu     sync.Mutex // guards closed
	db     *sql.DB
	conn   *sql.Conn
	cfg    Config
	closed bool
}

// Open creates or opens the database described by cfg.
// Applies the configured pragmas on the pinned connection.
//
// The pool is capped at one connection and that connection is pinned for
// the lifetime of the Store, so every native call runs on the same session
// (transactions, changes() and last_insert_rowid() are per-session).
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", cfg.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, and this client
	// serializes everything onto a single session anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, conn: conn, cfg: cfg}

	if err := s.applyPragmas(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return s, nil
}

// Close closes the pinned connection and the pool.
// Safe to call more than once; only the first call does anything.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// Delete closes the store and removes the database file together with its
// -wal, -shm and -journal companions. In-memory databases are only closed.
func (s *Store) Delete() error {
	if err := s.Close(); err != nil {
		return err
	}
	if s.cfg.IsMemory() {
		return nil
	}

	path := s.cfg.Path()
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.cfg.Path()
}

// applyPragmas sets the configured SQLite options on the pinned session.
func (s *Store) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.cfg.BusyTimeout.Milliseconds()),
		fmt.Sprintf("PRAGMA synchronous = %s", s.cfg.Synchronous),
		fmt.Sprintf("PRAGMA foreign_keys = %s", onOff(s.cfg.ForeignKeys)),
	}
	// In-memory databases only support MEMORY or OFF journaling.
	if !s.cfg.IsMemory() {
		pragmas = append([]string{fmt.Sprintf("PRAGMA journal_mode = %s", s.cfg.JournalMode)}, pragmas...)
	}

	for _, pragma := range pragmas {
		if err := s.execNative(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	raw, err := s.Exec(ctx, fmt.Sprintf("PRAGMA %s", name), nil)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if len(raw.Rows) != 1 || len(raw.Rows[0]) != 1 {
		return fmt.Errorf("%s returned %d rows", name, len(raw.Rows))
	}
	value := fmt.Sprint(raw.Rows[0][0])
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
