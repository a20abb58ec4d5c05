// Package engine executes statements and transactions against a single
// store.
//
// ARCHITECTURE:
//
// Single-Worker Execution:
// Every native call (prepare, step, BEGIN, COMMIT, ROLLBACK) runs on one
// Worker goroutine, taken from a FIFO job queue. Submission order is
// execution order, and the session never sees two calls at once.
//
// Admission:
// Before anything reaches the worker, the Client takes a place in the
// scheduler's line (see package scheduler). Transactions, batches and
// plain statements all hold the slot while they run, so a transaction
// never interleaves with other work.
//
// Request Flow:
//  1. Client.Transaction enqueues a ticket and waits for the slot
//  2. The Tx opens a native transaction (BEGIN)
//  3. The callback issues statements through the Tx; each is a worker job
//  4. Result rows are shaped by result.Map
//  5. Commit or rollback, then the slot passes to the next ticket
//
// Async variants (ExecuteAsync, TransactionAsync, ExecuteBatchAsync) take
// their place in line before returning and report through a Future.
package engine
