package engine

import (
	"context"
	"log/slog"
)

// Worker is the single goroutine that talks to the native session.
//
// Every prepare, bind, step and transaction-control call runs inside a job
// on this goroutine, in submission order. Callers never touch the session
// directly, so the engine never sees two native calls at once.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Worker struct {
	queue  *jobQueue
	done   chan struct{}
	logger *slog.Logger
}

// NewWorker creates a worker. Start it with Run.
func NewWorker(logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:  newJobQueue(),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Submit puts fn in line. ctx is handed to fn when it runs.
// Returns false if the worker has been stopped.
func (w *Worker) Submit(ctx context.Context, fn func(ctx context.Context)) bool {
	return w.queue.Enqueue(job{ctx: ctx, run: fn})
}

// Run executes jobs until Stop is called and the queue is drained, or ctx
// is cancelled. Jobs still queued when ctx is cancelled are dropped.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	w.logger.Debug("worker starting")

	for {
		// Try non-blocking dequeue first
		j, ok := w.queue.TryDequeue()
		if ok {
			w.runJob(j)
			continue
		}

		// No job ready - wait for signal or context cancellation
		select {
		case <-ctx.Done():
			w.logger.Debug("worker stopping: context cancelled")
			w.queue.Close()
			return ctx.Err()

		case <-w.queue.Wait():
			// The signal channel is closed once the queue is closed,
			// so this fires immediately during shutdown.
			if w.queue.Len() == 0 && w.stopped() {
				w.logger.Debug("worker stopping: queue closed")
				return nil
			}
		}
	}
}

func (w *Worker) runJob(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	j.run(ctx)
}

func (w *Worker) stopped() bool {
	w.queue.mu.Lock()
	defer w.queue.mu.Unlock()
	return w.queue.closed
}

// Stop stops accepting jobs and lets Run drain what is queued.
func (w *Worker) Stop() {
	w.queue.Close()
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
