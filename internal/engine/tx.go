package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/opsql/internal/result"
	"github.com/roach88/opsql/internal/store"
)

// TxState is the lifecycle state of a transaction.
type TxState int

const (
	// TxActive accepts statements.
	TxActive TxState = iota
	// TxCommitted has committed; statements are rejected.
	TxCommitted
	// TxRolledBack has rolled back; statements are rejected.
	TxRolledBack
	// TxFinalized has released its slot.
	TxFinalized
)

func (s TxState) String() string {
	switch s {
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolledback"
	case TxFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Tx is the handle a transaction callback uses to issue statements.
//
// Statements run inside the native transaction opened for the callback.
// Once the transaction commits or rolls back, by an explicit call or when
// the callback returns, further statements fail with ErrCodeTxFinalized.
//
// Thread-safety: a Tx may be used from several goroutines while the
// callback runs.
type Tx struct {
	id     string
	exec   *Executor
	store  *store.Store
	logger *slog.Logger

	mu       sync.Mutex // guards state; held while registering in-flight work
	state    TxState
	inflight sync.WaitGroup
}

func newTx(id string, exec *Executor, s *store.Store, logger *slog.Logger) *Tx {
	return &Tx{
		id:     id,
		exec:   exec,
		store:  s,
		logger: logger.With("tx", id),
	}
}

// ID returns the transaction id.
func (t *Tx) ID() string {
	return t.id
}

// State returns the current lifecycle state.
func (t *Tx) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Execute runs a statement inside the transaction and waits for it.
func (t *Tx) Execute(ctx context.Context, query string, args ...any) (result.QueryResult, error) {
	return t.ExecuteAsync(ctx, query, args...).wait()
}

// ExecuteAsync submits a statement inside the transaction.
// Statements run in the order they were submitted.
func (t *Tx) ExecuteAsync(ctx context.Context, query string, args ...any) *Future[result.QueryResult] {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TxActive {
		return failedFuture[result.QueryResult](NewTxFinalizedError(t.id, t.state))
	}

	t.inflight.Add(1)
	return t.exec.submit(ctx, query, args, t.inflight.Done)
}

// Commit makes the transaction's changes durable.
//
// Statements already submitted finish first. If COMMIT fails the
// transaction is rolled back and the engine's error is returned.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.transition(TxCommitted); err != nil {
		return err
	}
	t.inflight.Wait()

	err := t.exec.native(context.WithoutCancel(ctx), func(ctx context.Context) error {
		cerr := t.store.Commit(ctx)
		if cerr == nil {
			return nil
		}
		if rerr := t.store.Rollback(ctx); rerr != nil {
			t.logger.Error("rollback after failed commit failed", "error", rerr, "cause", cerr)
		}
		return cerr
	})
	if err != nil {
		t.setState(TxRolledBack)
		return err
	}

	t.logger.Debug("transaction committed")
	return nil
}

// Rollback discards the transaction's changes.
// Statements already submitted finish first.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.transition(TxRolledBack); err != nil {
		return err
	}
	t.inflight.Wait()

	err := t.exec.native(context.WithoutCancel(ctx), t.store.Rollback)
	if err != nil {
		return err
	}

	t.logger.Debug("transaction rolled back")
	return nil
}

// transition moves an active transaction to next.
func (t *Tx) transition(next TxState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TxActive {
		return NewAlreadyFinalizedError(t.id, t.state)
	}
	t.state = next
	return nil
}

func (t *Tx) setState(s TxState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// begin opens the native transaction.
func (t *Tx) begin(ctx context.Context) error {
	return t.exec.native(context.WithoutCancel(ctx), t.store.Begin)
}

// abort rolls back a transaction that is still active. Failures are
// logged; the caller is already returning another error.
func (t *Tx) abort(ctx context.Context, cause any) {
	if t.State() != TxActive {
		t.inflight.Wait()
		return
	}
	if err := t.Rollback(ctx); err != nil {
		t.logger.Warn("rollback after callback failure failed",
			"error", err,
			"cause", cause,
		)
	}
}

// finish commits a transaction that is still active.
func (t *Tx) finish(ctx context.Context) error {
	if t.State() != TxActive {
		t.inflight.Wait()
		return nil
	}
	return t.Commit(ctx)
}

// finalize marks the transaction finished for good.
func (t *Tx) finalize() {
	t.inflight.Wait()
	t.setState(TxFinalized)
}
