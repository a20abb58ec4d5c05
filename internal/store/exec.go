package store

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/opsql/internal/querysql"
	"github.com/roach88/opsql/internal/result"
)

// nativeConn is the driver-level capability the store relies on.
// *sqlite3.SQLiteConn satisfies it.
type nativeConn interface {
	driver.Conn
	driver.ConnPrepareContext
}

// declTyper exposes the driver's per-column declared types. For
// *sqlite3.SQLiteRows the returned slice is the one Next consults when it
// converts cells (BOOLEAN to bool, DATE/DATETIME/TIMESTAMP to time.Time).
type declTyper interface {
	DeclTypes() []string
}

// autoCommitter reports whether the session is outside an explicit
// transaction (sqlite3_get_autocommit).
type autoCommitter interface {
	AutoCommit() bool
}

// Exec runs a script of one or more statements and returns the raw output
// of the last one.
//
// Statements run in order. Positional args are consumed by each statement
// according to its parameter count; supplying too few or too many is an
// EngineError with code SQLITE_RANGE. Rows of all but the last statement are
// stepped to completion and discarded.
//
// Changes and LastInsertID are read from the session after the last
// statement, so they reflect the most recent write on this connection even
// when the script itself only reads.
func (s *Store) Exec(ctx context.Context, script string, args []any) (result.Raw, error) {
	named, err := bindArgs(args)
	if err != nil {
		return result.Raw{}, err
	}

	stmts := querysql.Split(script)

	var raw result.Raw
	err = s.withConn(func(c nativeConn) error {
		used := 0
		for i, text := range stmts {
			last := i == len(stmts)-1
			n, out, err := runStatement(ctx, c, text, named[used:], last)
			if err != nil {
				return err
			}
			used += n
			if last {
				raw = out
			}
		}
		if used != len(named) {
			return rangeError(used, len(named))
		}

		return readCounters(ctx, c, &raw)
	})
	if err != nil {
		return result.Raw{}, err
	}
	return raw, nil
}

// TotalChanges returns the session's total_changes() counter: rows
// modified since the store was opened.
func (s *Store) TotalChanges(ctx context.Context) (int64, error) {
	var raw result.Raw
	err := s.withConn(func(c nativeConn) error {
		return readCounters(ctx, c, &raw)
	})
	return raw.TotalChanges, err
}

// Begin opens a deferred transaction on the session.
func (s *Store) Begin(ctx context.Context) error {
	return s.execNative(ctx, "BEGIN")
}

// Commit commits the open transaction.
func (s *Store) Commit(ctx context.Context) error {
	return s.execNative(ctx, "COMMIT")
}

// Rollback rolls back the open transaction. It is a no-op when the engine
// already left the transaction on its own (some errors abort it).
func (s *Store) Rollback(ctx context.Context) error {
	inTx, err := s.InTransaction()
	if err != nil {
		return err
	}
	if !inTx {
		return nil
	}
	return s.execNative(ctx, "ROLLBACK")
}

// Savepoint opens a named savepoint.
func (s *Store) Savepoint(ctx context.Context, name string) error {
	return s.execNative(ctx, "SAVEPOINT "+quoteIdent(name))
}

// Release releases a named savepoint, keeping its effects.
func (s *Store) Release(ctx context.Context, name string) error {
	return s.execNative(ctx, "RELEASE SAVEPOINT "+quoteIdent(name))
}

// RollbackTo undoes everything since the named savepoint and releases it.
func (s *Store) RollbackTo(ctx context.Context, name string) error {
	if err := s.execNative(ctx, "ROLLBACK TO SAVEPOINT "+quoteIdent(name)); err != nil {
		return err
	}
	return s.Release(ctx, name)
}

// InTransaction reports whether the session has an open transaction.
func (s *Store) InTransaction() (bool, error) {
	var inTx bool
	err := s.withConn(func(c nativeConn) error {
		ac, ok := c.(autoCommitter)
		if !ok {
			return fmt.Errorf("driver connection %T does not report autocommit state", c)
		}
		inTx = !ac.AutoCommit()
		return nil
	})
	return inTx, err
}

// execNative runs one statement that returns nothing of interest.
func (s *Store) execNative(ctx context.Context, query string) error {
	return s.withConn(func(c nativeConn) error {
		st, err := c.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer st.Close()

		ex, ok := st.(driver.StmtExecContext)
		if !ok {
			return fmt.Errorf("driver statement %T does not support ExecContext", st)
		}
		_, err = ex.ExecContext(ctx, nil)
		return err
	})
}

// withConn hands the native session to fn and classifies its error.
func (s *Store) withConn(fn func(nativeConn) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	err := conn.Raw(func(dc any) error {
		c, ok := dc.(nativeConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type %T", dc)
		}
		return fn(c)
	})
	return classify(err)
}

// runStatement prepares, binds, steps and finalizes one statement.
// Returns how many args it consumed. Rows are collected only when collect
// is set; otherwise they are stepped and dropped.
func runStatement(ctx context.Context, c nativeConn, text string, args []driver.NamedValue, collect bool) (int, result.Raw, error) {
	st, err := c.PrepareContext(ctx, text)
	if err != nil {
		return 0, result.Raw{}, err
	}
	defer st.Close()

	n := st.NumInput()
	if n < 0 {
		n = 0
	}
	if n > len(args) {
		return 0, result.Raw{}, rangeError(n, len(args))
	}

	q, ok := st.(driver.StmtQueryContext)
	if !ok {
		return 0, result.Raw{}, fmt.Errorf("driver statement %T does not support QueryContext", st)
	}
	rows, err := q.QueryContext(ctx, renumber(args[:n]))
	if err != nil {
		return 0, result.Raw{}, err
	}
	defer rows.Close()

	storageClassCells(rows)

	var raw result.Raw
	names := rows.Columns()
	if collect {
		raw.Columns = make([]result.RawColumn, len(names))
		typed, _ := rows.(driver.RowsColumnTypeDatabaseTypeName)
		for i, name := range names {
			raw.Columns[i] = result.RawColumn{Name: name}
			if typed != nil {
				raw.Columns[i].DeclType = typed.ColumnTypeDatabaseTypeName(i)
			}
		}
	}

	dest := make([]driver.Value, len(names))
	for {
		err := rows.Next(dest)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, result.Raw{}, err
		}
		if !collect {
			continue
		}
		row := make([]any, len(dest))
		for i, v := range dest {
			if b, ok := v.([]byte); ok {
				v = bytes.Clone(b)
			}
			row[i] = v
		}
		raw.Rows = append(raw.Rows, row)
	}

	return n, raw, nil
}

// storageClassCells makes rows return every cell as its storage class
// (int64, float64, string, []byte or nil) whatever the column's declared
// type. Must run before the first Next. Column metadata is unaffected:
// ColumnTypeDatabaseTypeName reads the declared type from the statement.
func storageClassCells(rows driver.Rows) {
	if dt, ok := rows.(declTyper); ok {
		clear(dt.DeclTypes())
	}
}

// readCounters fills the session counters of raw.
func readCounters(ctx context.Context, c nativeConn, raw *result.Raw) error {
	_, out, err := runStatement(ctx, c, "SELECT changes(), last_insert_rowid(), total_changes()", nil, true)
	if err != nil {
		return err
	}
	if len(out.Rows) != 1 {
		return fmt.Errorf("counters query returned %d rows", len(out.Rows))
	}
	raw.Changes, _ = out.Rows[0][0].(int64)
	raw.LastInsertID, _ = out.Rows[0][1].(int64)
	raw.TotalChanges, _ = out.Rows[0][2].(int64)
	return nil
}

// bindArgs converts caller arguments into driver values.
// ir.Value implements driver.Valuer, so it passes through unchanged.
func bindArgs(args []any) ([]driver.NamedValue, error) {
	named := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		v, err := driver.DefaultParameterConverter.ConvertValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named, nil
}

// renumber returns a copy of args with ordinals starting at 1.
func renumber(args []driver.NamedValue) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, a := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: a.Value}
	}
	return out
}

func rangeError(want, got int) *EngineError {
	return &EngineError{
		Code:    sqlite3.ErrRange,
		Message: fmt.Sprintf("bind or column index out of range: statement expects %d arguments, got %d", want, got),
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
