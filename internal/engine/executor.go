package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/opsql/internal/result"
	"github.com/roach88/opsql/internal/store"
)

// Command is one statement of a batch.
type Command struct {
	SQL  string `yaml:"sql" json:"sql"`
	Args []any  `yaml:"args,omitempty" json:"args,omitempty"`
}

// BatchResult is the outcome of a committed batch.
type BatchResult struct {
	// RowsAffected is the number of rows the batch's commands modified.
	RowsAffected int64
	// Results holds each command's result, in command order.
	Results []result.QueryResult
}

// Executor turns statements into worker jobs.
//
// It does no scheduling of its own: callers must hold the slot (a lease)
// before calling it. Execution order is submission order.
type Executor struct {
	store  *store.Store
	worker *Worker
	logger *slog.Logger

	savepoints atomic.Int64
}

// NewExecutor creates an executor that runs statements against s on w.
func NewExecutor(s *store.Store, w *Worker, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: s, worker: w, logger: logger}
}

// Execute runs a statement and blocks until it has finished.
//
// Once submitted, the statement is not abandoned: ctx is handed to the
// engine, which interrupts the statement when ctx is done.
func (e *Executor) Execute(ctx context.Context, query string, args ...any) (result.QueryResult, error) {
	return e.ExecuteAsync(ctx, query, args...).wait()
}

// ExecuteAsync submits a statement and returns immediately.
func (e *Executor) ExecuteAsync(ctx context.Context, query string, args ...any) *Future[result.QueryResult] {
	return e.submit(ctx, query, args, nil)
}

// submit queues a statement; onDone, if set, runs on the worker right
// after the future settles.
func (e *Executor) submit(ctx context.Context, query string, args []any, onDone func()) *Future[result.QueryResult] {
	f := newFuture[result.QueryResult]()
	ok := e.worker.Submit(ctx, func(ctx context.Context) {
		f.settle(e.run(ctx, query, args))
		if onDone != nil {
			onDone()
		}
	})
	if !ok {
		f.reject(ErrClosed)
		if onDone != nil {
			onDone()
		}
	}
	return f
}

// native runs fn on the worker and waits for it.
func (e *Executor) native(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	if !e.worker.Submit(ctx, func(ctx context.Context) { done <- fn(ctx) }) {
		return ErrClosed
	}
	return <-done
}

// run executes one statement on the worker goroutine.
func (e *Executor) run(ctx context.Context, query string, args []any) (result.QueryResult, error) {
	e.logger.Debug("executing statement", "sql", query, "args", len(args))

	raw, err := e.store.Exec(ctx, query, args)
	if err != nil {
		e.logger.Debug("statement failed", "sql", query, "error", err)
		return result.QueryResult{}, err
	}
	return result.Map(raw)
}

// ExecuteBatch runs cmds atomically and blocks until the batch has
// committed or rolled back.
func (e *Executor) ExecuteBatch(ctx context.Context, cmds []Command) (BatchResult, error) {
	return e.ExecuteBatchAsync(ctx, cmds).wait()
}

// ExecuteBatchAsync submits a batch and returns immediately.
//
// The whole batch is one worker job, so no other statement can interleave
// with it. Outside a transaction it runs between BEGIN and COMMIT; inside
// one it runs under a savepoint, so its failure undoes only its own work.
func (e *Executor) ExecuteBatchAsync(ctx context.Context, cmds []Command) *Future[BatchResult] {
	if len(cmds) == 0 {
		f := newFuture[BatchResult]()
		f.resolve(BatchResult{})
		return f
	}

	// Copy so later mutation by the caller cannot race the worker.
	cmds = append([]Command(nil), cmds...)

	f := newFuture[BatchResult]()
	ok := e.worker.Submit(ctx, func(ctx context.Context) {
		f.settle(e.runBatch(ctx, cmds))
	})
	if !ok {
		f.reject(ErrClosed)
	}
	return f
}

// runBatch executes a batch on the worker goroutine.
func (e *Executor) runBatch(ctx context.Context, cmds []Command) (BatchResult, error) {
	nested, err := e.store.InTransaction()
	if err != nil {
		return BatchResult{}, err
	}

	var begin, commit, rollback func() error
	if nested {
		name := fmt.Sprintf("opsql_batch_%d", e.savepoints.Add(1))
		begin = func() error { return e.store.Savepoint(ctx, name) }
		commit = func() error { return e.store.Release(ctx, name) }
		rollback = func() error { return e.store.RollbackTo(ctx, name) }
	} else {
		begin = func() error { return e.store.Begin(ctx) }
		commit = func() error { return e.store.Commit(ctx) }
		rollback = func() error { return e.store.Rollback(ctx) }
	}

	e.logger.Debug("executing batch", "commands", len(cmds), "nested", nested)

	if err := begin(); err != nil {
		return BatchResult{}, err
	}

	undo := func(cause error) {
		if err := rollback(); err != nil {
			e.logger.Error("batch rollback failed",
				"error", err,
				"cause", cause,
			)
		}
	}

	total, err := e.store.TotalChanges(ctx)
	if err != nil {
		undo(err)
		return BatchResult{}, err
	}

	br := BatchResult{Results: make([]result.QueryResult, 0, len(cmds))}
	for i, cmd := range cmds {
		raw, err := e.store.Exec(ctx, cmd.SQL, cmd.Args)
		var qr result.QueryResult
		if err == nil {
			qr, err = result.Map(raw)
		}
		if err != nil {
			undo(err)
			return BatchResult{}, &BatchError{Index: i, Err: err}
		}
		br.RowsAffected += raw.TotalChanges - total
		total = raw.TotalChanges
		br.Results = append(br.Results, qr)
	}

	if err := commit(); err != nil {
		undo(err)
		return BatchResult{}, err
	}
	return br, nil
}
