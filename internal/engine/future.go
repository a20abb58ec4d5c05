package engine

import (
	"context"
	"sync"
)

// Future is the eventual outcome of an asynchronous operation.
//
// A Future settles exactly once. Await may be called any number of times
// from any goroutine; all callers observe the same value and error.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// failedFuture returns a future already settled with err.
func failedFuture[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.reject(err)
	return f
}

// Await blocks until the future settles or ctx is done.
//
// Giving up on ctx does not cancel the operation; it still runs to
// completion and its outcome stays available to later Await calls.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// wait blocks until the future settles.
func (f *Future[T]) wait() (T, error) {
	<-f.done
	return f.val, f.err
}

func (f *Future[T]) settle(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

func (f *Future[T]) resolve(val T) {
	f.settle(val, nil)
}

func (f *Future[T]) reject(err error) {
	var zero T
	f.settle(zero, err)
}
