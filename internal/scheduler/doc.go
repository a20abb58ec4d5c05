// Package scheduler grants exclusive use of a database session to one
// owner at a time, in strict arrival order.
//
// A caller takes a Ticket with Enqueue, which never blocks and fixes the
// caller's place in line. Ticket.Wait blocks until the ticket reaches the
// head of the queue and the slot is free, then returns a Lease. Releasing
// the lease hands the slot directly to the next ticket, so a late arrival
// can never overtake a waiting one.
//
// # Re-entrancy
//
// WithLease stores a lease in a context. Code running under a lease passes
// that context down; Scheduler.LeaseFrom lets lower layers detect that the caller
// already holds the slot and must not queue behind itself.
package scheduler
