package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

// ErrClosed is returned for any operation on a closed store.
var ErrClosed = errors.New("database is closed")

// EngineError is an error raised by the SQL engine while preparing,
// binding or stepping a statement.
//
// Message is the engine's text, unmodified. Callers match on it.
type EngineError struct {
	Code         sqlite3.ErrNo
	ExtendedCode sqlite3.ErrNoExtended
	Message      string
	// Fatal marks errors after which the session should not be trusted.
	Fatal bool

	cause error
}

func (e *EngineError) Error() string {
	return e.Message
}

func (e *EngineError) Unwrap() error {
	return e.cause
}

// AsEngineError extracts an EngineError from err's chain.
func AsEngineError(err error) (*EngineError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsFatal reports whether err carries a fatal engine error.
func IsFatal(err error) bool {
	ee, ok := AsEngineError(err)
	return ok && ee.Fatal
}

// classify maps driver errors onto the store's error vocabulary.
// Errors that are already classified pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrClosed) {
		return err
	}
	if errors.Is(err, sql.ErrConnDone) {
		return ErrClosed
	}
	if _, ok := AsEngineError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		return &EngineError{
			Code:         se.Code,
			ExtendedCode: se.ExtendedCode,
			Message:      se.Error(),
			Fatal:        isFatal(se.Code),
			cause:        err,
		}
	}
	return err
}

func isFatal(code sqlite3.ErrNo) bool {
	switch code {
	case sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrIoErr,
		sqlite3.ErrNomem, sqlite3.ErrCantOpen, sqlite3.ErrFull:
		return true
	}
	return false
}
