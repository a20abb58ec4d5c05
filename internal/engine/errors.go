package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/opsql/internal/store"
)

// ErrClosed is returned for any operation on a closed client.
var ErrClosed = store.ErrClosed

// StateError reports an operation that the transaction's current state
// does not allow.
type StateError struct {
	// Code identifies the error category.
	Code StateErrorCode

	// Message is a human-readable description.
	Message string

	// TxID identifies the affected transaction.
	TxID string
}

// StateErrorCode categorizes state errors.
type StateErrorCode string

const (
	// ErrCodeTxFinalized indicates a statement was issued on a transaction
	// that has already committed or rolled back.
	ErrCodeTxFinalized StateErrorCode = "TX_FINALIZED"

	// ErrCodeAlreadyFinalized indicates Commit or Rollback was called on a
	// transaction that has already committed or rolled back.
	ErrCodeAlreadyFinalized StateErrorCode = "ALREADY_FINALIZED"
)

// Error implements the error interface.
func (e *StateError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("%s: %s (tx=%s)", e.Code, e.Message, e.TxID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsFinalizedError returns true if err reports use of a finished
// transaction, for either statements or a second Commit/Rollback.
// Uses errors.As to handle wrapped errors.
func IsFinalizedError(err error) bool {
	var se *StateError
	if errors.As(err, &se) {
		return se.Code == ErrCodeTxFinalized || se.Code == ErrCodeAlreadyFinalized
	}
	return false
}

// NewTxFinalizedError creates a StateError for a statement issued after
// the transaction finished.
func NewTxFinalizedError(txID string, state TxState) *StateError {
	return &StateError{
		Code:    ErrCodeTxFinalized,
		Message: fmt.Sprintf("transaction is %s, cannot execute statements", state),
		TxID:    txID,
	}
}

// NewAlreadyFinalizedError creates a StateError for a repeated
// Commit/Rollback.
func NewAlreadyFinalizedError(txID string, state TxState) *StateError {
	return &StateError{
		Code:    ErrCodeAlreadyFinalized,
		Message: fmt.Sprintf("transaction is already %s", state),
		TxID:    txID,
	}
}

// BatchError reports the command that made a batch fail.
// The batch has been rolled back in full.
type BatchError struct {
	// Index is the position of the failing command.
	Index int
	// Err is the command's error, unchanged.
	Err error
}

// Error returns the failing command's message unchanged. The position is
// in Index.
func (e *BatchError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the failing command's error.
func (e *BatchError) Unwrap() error {
	return e.Err
}
