package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/opsql/internal/result"
	"github.com/roach88/opsql/internal/scheduler"
	"github.com/roach88/opsql/internal/store"
)

// TxFunc is a transaction callback. ctx carries the transaction's slot:
// client calls made with it run inside the slot instead of queueing.
type TxFunc func(ctx context.Context, tx *Tx) error

// PanicError is returned by TransactionAsync when the callback panicked.
// The transaction has been rolled back.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("transaction callback panicked: %v", e.Value)
}

// ErrNestedTransaction is returned when a transaction is started with a
// context that already holds a transaction's slot.
var ErrNestedTransaction = errors.New("transaction already in progress on this context")

// Client serializes all work on one store.
//
// Every operation, plain statements included, first takes a place in the
// scheduler's line; at most one holds the slot at a time and they are
// admitted in the order they arrived. Native calls all run on one Worker.
//
// Thread-safety model: every method is safe from any goroutine.
type Client struct {
	store  *store.Store
	sched  *scheduler.Scheduler
	worker *Worker
	exec   *Executor
	logger *slog.Logger
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	logger *slog.Logger
	ids    scheduler.IDGenerator
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithIDGenerator sets the generator for transaction ids.
// Defaults to UUIDv7.
func WithIDGenerator(g scheduler.IDGenerator) Option {
	return func(c *clientConfig) {
		c.ids = g
	}
}

// New creates a client over s and starts its worker.
// The client owns s from now on; Close closes it.
func New(s *store.Store, opts ...Option) *Client {
	cfg := clientConfig{
		logger: slog.Default(),
		ids:    scheduler.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	w := NewWorker(cfg.logger)
	c := &Client{
		store: s,
		sched: scheduler.New(
			scheduler.WithIDGenerator(cfg.ids),
			scheduler.WithLogger(cfg.logger),
		),
		worker: w,
		exec:   NewExecutor(s, w, cfg.logger),
		logger: cfg.logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go w.Run(ctx)

	return c
}

// slot is a claim on the scheduler: either a lease the caller already
// holds through its context, or a ticket still in line.
type slot struct {
	held   *scheduler.Lease
	ticket *scheduler.Ticket
}

// reserve claims a place in line without blocking.
func (c *Client) reserve(ctx context.Context, owner string) slot {
	if l, ok := c.sched.LeaseFrom(ctx); ok {
		return slot{held: l}
	}
	return slot{ticket: c.sched.Enqueue(owner)}
}

// wait blocks until the slot is ours. The returned func gives it back.
func (s slot) wait(ctx context.Context) (*scheduler.Lease, func(), error) {
	if s.held != nil {
		return s.held, func() {}, nil
	}
	l, err := s.ticket.Wait(ctx)
	if err != nil {
		if errors.Is(err, scheduler.ErrClosed) {
			err = ErrClosed
		}
		return nil, nil, err
	}
	return l, l.Release, nil
}

// Execute runs a statement outside any explicit transaction and waits for
// its result.
func (c *Client) Execute(ctx context.Context, query string, args ...any) (result.QueryResult, error) {
	_, release, err := c.reserve(ctx, "execute").wait(ctx)
	if err != nil {
		return result.QueryResult{}, err
	}
	defer release()

	return c.exec.Execute(ctx, query, args...)
}

// ExecuteAsync is Execute without waiting. The statement's place in line
// is taken before ExecuteAsync returns.
func (c *Client) ExecuteAsync(ctx context.Context, query string, args ...any) *Future[result.QueryResult] {
	sl := c.reserve(ctx, "execute")
	if sl.held != nil {
		return c.exec.ExecuteAsync(ctx, query, args...)
	}

	f := newFuture[result.QueryResult]()
	go func() {
		_, release, err := sl.wait(ctx)
		if err != nil {
			f.reject(err)
			return
		}
		defer release()
		f.settle(c.exec.Execute(ctx, query, args...))
	}()
	return f
}

// ExecuteBatch runs cmds atomically: all of them commit or none do.
func (c *Client) ExecuteBatch(ctx context.Context, cmds []Command) (BatchResult, error) {
	_, release, err := c.reserve(ctx, "batch").wait(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	defer release()

	return c.exec.ExecuteBatch(ctx, cmds)
}

// ExecuteBatchAsync is ExecuteBatch without waiting.
func (c *Client) ExecuteBatchAsync(ctx context.Context, cmds []Command) *Future[BatchResult] {
	sl := c.reserve(ctx, "batch")
	if sl.held != nil {
		return c.exec.ExecuteBatchAsync(ctx, cmds)
	}

	cmds = append([]Command(nil), cmds...)
	f := newFuture[BatchResult]()
	go func() {
		_, release, err := sl.wait(ctx)
		if err != nil {
			f.reject(err)
			return
		}
		defer release()
		f.settle(c.exec.ExecuteBatch(ctx, cmds))
	}()
	return f
}

// Transaction runs fn inside a transaction once every earlier request has
// finished.
//
// If fn returns nil and has not finalized the transaction, it commits. If
// fn returns an error, the transaction rolls back and that error is
// returned unchanged. If fn panics, the transaction rolls back, the slot is
// released, and the panic continues.
//
// Waiting for the slot honors ctx. Once admitted, the transaction runs to
// completion regardless of ctx.
func (c *Client) Transaction(ctx context.Context, fn TxFunc) error {
	if _, ok := c.sched.LeaseFrom(ctx); ok {
		return ErrNestedTransaction
	}

	lease, err := slot{ticket: c.sched.Enqueue("transaction")}.waitLease(ctx)
	if err != nil {
		return err
	}
	return c.runTx(ctx, lease, fn)
}

// TransactionAsync is Transaction without waiting. Its place in line is
// taken before TransactionAsync returns, so transactions started one after
// another run in that order.
//
// A panic in fn is recovered and reported as *PanicError.
func (c *Client) TransactionAsync(ctx context.Context, fn TxFunc) *Future[struct{}] {
	if _, ok := c.sched.LeaseFrom(ctx); ok {
		return failedFuture[struct{}](ErrNestedTransaction)
	}

	sl := slot{ticket: c.sched.Enqueue("transaction")}
	f := newFuture[struct{}]()
	go func() {
		lease, err := sl.waitLease(ctx)
		if err != nil {
			f.reject(err)
			return
		}
		defer func() {
			if r := recover(); r != nil {
				f.reject(&PanicError{Value: r})
			}
		}()
		f.settle(struct{}{}, c.runTx(ctx, lease, fn))
	}()
	return f
}

func (s slot) waitLease(ctx context.Context) (*scheduler.Lease, error) {
	l, _, err := s.wait(ctx)
	return l, err
}

// runTx drives one admitted transaction from BEGIN to release.
// The caller's cancellation stops at admission: the callback and every
// statement it issues run under a ctx that keeps its values but is never
// cancelled.
func (c *Client) runTx(ctx context.Context, lease *scheduler.Lease, fn TxFunc) (err error) {
	defer lease.Release()
	ctx = context.WithoutCancel(ctx)

	tx := newTx(lease.ID(), c.exec, c.store, c.logger)
	if err := tx.begin(ctx); err != nil {
		tx.setState(TxFinalized)
		return err
	}
	c.logger.Debug("transaction started", "tx", tx.ID(), "seq", lease.Seq())

	txCtx := scheduler.WithLease(ctx, lease)

	defer func() {
		if r := recover(); r != nil {
			tx.abort(txCtx, r)
			tx.finalize()
			panic(r)
		}
	}()

	if cbErr := fn(txCtx, tx); cbErr != nil {
		tx.abort(txCtx, cbErr)
		tx.finalize()
		return cbErr
	}

	err = tx.finish(txCtx)
	tx.finalize()
	return err
}

// State returns a snapshot of the scheduler's slot.
func (c *Client) State() scheduler.State {
	return c.sched.State()
}

// Close waits for the current holder to finish, fails everything still in
// line with ErrClosed, stops the worker and closes the store.
//
// Close must not be called from inside a transaction callback: it waits
// for that callback to return.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.sched.Close()
		c.worker.Stop()
		<-c.worker.Done()
		c.cancel()
		c.closeErr = c.store.Close()
	})
	return c.closeErr
}
