package opsql

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/opsql/internal/engine"
	"github.com/roach88/opsql/internal/ir"
	"github.com/roach88/opsql/internal/querysql"
	"github.com/roach88/opsql/internal/result"
	"github.com/roach88/opsql/internal/store"
)

type (
	// QueryResult is the outcome of one statement.
	QueryResult = result.QueryResult
	// Column describes one result column.
	Column = result.Column
	// Rows is an ordered, read-only set of result rows.
	Rows = result.Rows
	// Row is one result row.
	Row = result.Row

	// Tx issues statements inside a transaction callback.
	Tx = engine.Tx
	// TxFunc is a transaction callback.
	TxFunc = engine.TxFunc
	// TxState is a transaction's lifecycle state.
	TxState = engine.TxState
	// Future is the eventual outcome of an Async call.
	Future[T any] = engine.Future[T]

	// Command is one statement of a batch.
	Command = engine.Command
	// BatchResult is the outcome of a committed batch.
	BatchResult = engine.BatchResult

	// EngineError is an error raised by SQLite. Its message is SQLite's,
	// unchanged.
	EngineError = store.EngineError
	// StateError reports use of a finished transaction.
	StateError = engine.StateError
	// BatchError reports the command that made a batch fail.
	BatchError = engine.BatchError
	// PanicError reports a panic in an async transaction callback.
	PanicError = engine.PanicError

	// Value is a SQLite value: Null, Int, Float, Text or Blob.
	Value = ir.Value
	// Null is SQL NULL.
	Null = ir.Null
	// Int is an INTEGER value.
	Int = ir.Int
	// Float is a REAL value.
	Float = ir.Float
	// Text is a TEXT value.
	Text = ir.Text
	// Blob is a BLOB value.
	Blob = ir.Blob
)

// Transaction states.
const (
	TxActive     = engine.TxActive
	TxCommitted  = engine.TxCommitted
	TxRolledBack = engine.TxRolledBack
	TxFinalized  = engine.TxFinalized
)

var (
	// ErrClosed is returned by every operation on a closed DB.
	ErrClosed = engine.ErrClosed
	// ErrNestedTransaction is returned when a transaction is started from
	// inside another transaction's callback.
	ErrNestedTransaction = engine.ErrNestedTransaction
)

// IsFinalizedError reports whether err is a StateError for a finished
// transaction.
func IsFinalizedError(err error) bool {
	return engine.IsFinalizedError(err)
}

// DB is a handle on one database and its single connection.
//
// All methods are safe for concurrent use.
type DB struct {
	store  *store.Store
	client *engine.Client
	logger *slog.Logger
}

// Open opens or creates the database called name, or a private in-memory
// database for MemoryName.
func Open(name string, opts ...Option) (*DB, error) {
	o := options{cfg: store.DefaultConfig(), logger: slog.Default()}
	o.cfg.Name = name
	for _, opt := range opts {
		opt(&o)
	}

	s, err := store.Open(context.Background(), o.cfg)
	if err != nil {
		return nil, err
	}

	o.logger.Info("database opened",
		"path", s.Path(),
		"journal_mode", o.cfg.JournalMode,
		"synchronous", o.cfg.Synchronous,
	)

	return &DB{
		store:  s,
		client: engine.New(s, engine.WithLogger(o.logger)),
		logger: o.logger,
	}, nil
}

// Path returns the path of the database file, or MemoryName.
func (db *DB) Path() string {
	return db.store.Path()
}

// Execute runs query with positional args bound to its ? placeholders and
// waits for the result. query may hold several statements separated by
// semicolons; they run in order, args are consumed left to right, and the
// result is the last statement's.
func (db *DB) Execute(ctx context.Context, query string, args ...any) (QueryResult, error) {
	return db.client.Execute(ctx, query, args...)
}

// ExecuteAsync is Execute without waiting.
func (db *DB) ExecuteAsync(ctx context.Context, query string, args ...any) *Future[QueryResult] {
	return db.client.ExecuteAsync(ctx, query, args...)
}

// Transaction runs fn inside a transaction after every earlier request has
// finished. fn's error is returned unchanged after rolling back; a nil
// return commits.
func (db *DB) Transaction(ctx context.Context, fn TxFunc) error {
	return db.client.Transaction(ctx, fn)
}

// TransactionAsync is Transaction without waiting.
func (db *DB) TransactionAsync(ctx context.Context, fn TxFunc) *Future[struct{}] {
	return db.client.TransactionAsync(ctx, fn)
}

// ExecuteBatch runs cmds atomically.
func (db *DB) ExecuteBatch(ctx context.Context, cmds []Command) (BatchResult, error) {
	return db.client.ExecuteBatch(ctx, cmds)
}

// ExecuteBatchAsync is ExecuteBatch without waiting.
func (db *DB) ExecuteBatchAsync(ctx context.Context, cmds []Command) *Future[BatchResult] {
	return db.client.ExecuteBatchAsync(ctx, cmds)
}

// LoadFile runs every statement of a SQL file as one atomic batch.
func (db *DB) LoadFile(ctx context.Context, path string) (BatchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	stmts := querysql.Split(string(data))
	cmds := make([]Command, len(stmts))
	for i, s := range stmts {
		cmds[i] = Command{SQL: s}
	}

	db.logger.Debug("loading sql file", "path", path, "statements", len(cmds))
	return db.client.ExecuteBatch(ctx, cmds)
}

// Close lets the request holding the connection finish, fails every
// request still waiting with ErrClosed, and closes the connection.
// Calling Close from inside a transaction callback deadlocks.
func (db *DB) Close() error {
	err := db.client.Close()
	db.logger.Info("database closed", "path", db.Path())
	return err
}

// Delete closes the database and removes its files.
func (db *DB) Delete() error {
	if err := db.Close(); err != nil {
		return err
	}
	if err := db.store.Delete(); err != nil {
		return err
	}
	db.logger.Info("database deleted", "path", db.Path())
	return nil
}
