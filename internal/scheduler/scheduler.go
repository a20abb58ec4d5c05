package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Ticket.Wait when the scheduler shut down before
// the ticket was admitted.
var ErrClosed = errors.New("scheduler is closed")

// Scheduler is a single slot with a FIFO line of tickets.
//
// Thread-safety: all methods are safe for concurrent use.
type Scheduler struct {
	mu     sync.Mutex
	idle   *sync.Cond // signalled when the slot is released
	clock  *Clock
	ids    IDGenerator
	logger *slog.Logger

	queue  []*Ticket
	holder *Lease
	closed bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to stamp tickets.
func WithClock(c *Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithIDGenerator sets the generator used for lease ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Scheduler) {
		s.ids = g
	}
}

// WithLogger sets the logger for admission events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// New creates an idle scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  NewClock(),
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Ticket is a pending request for the slot.
type Ticket struct {
	s        *Scheduler
	seq      int64
	owner    string
	enqueued time.Time
	ready    chan struct{} // closed on admission or failure

	// Set under s.mu before ready is closed.
	lease *Lease
	err   error
}

// Seq returns the ticket's position in arrival order.
func (t *Ticket) Seq() int64 {
	return t.seq
}

// Owner returns the label passed to Enqueue.
func (t *Ticket) Owner() string {
	return t.owner
}

// Lease is exclusive ownership of the slot.
type Lease struct {
	s        *Scheduler
	id       string
	seq      int64
	owner    string
	admitted time.Time
	once     sync.Once
}

// ID returns the lease id.
func (l *Lease) ID() string {
	return l.id
}

// Seq returns the sequence number of the ticket that produced the lease.
func (l *Lease) Seq() int64 {
	return l.seq
}

// Owner returns the label of the ticket that produced the lease.
func (l *Lease) Owner() string {
	return l.owner
}

// Held reports whether the lease still owns the slot.
func (l *Lease) Held() bool {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.holder == l
}

// Release gives the slot to the next ticket in line.
// Calling it more than once has no effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		s := l.s
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.holder != l {
			return
		}
		s.holder = nil
		s.logger.Debug("lease released",
			"lease", l.id,
			"owner", l.owner,
			"held", time.Since(l.admitted),
		)
		s.admitNextLocked()
		s.idle.Broadcast()
	})
}

// Enqueue takes a place in line. It never blocks.
//
// The slot is granted immediately when it is free and nobody is waiting;
// otherwise the ticket waits behind every ticket enqueued before it.
func (s *Scheduler) Enqueue(owner string) *Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Ticket{
		s:        s,
		seq:      s.clock.Next(),
		owner:    owner,
		enqueued: time.Now(),
		ready:    make(chan struct{}),
	}

	if s.closed {
		t.err = ErrClosed
		close(t.ready)
		return t
	}

	s.queue = append(s.queue, t)
	if s.holder == nil {
		s.admitNextLocked()
	}
	return t
}

// Wait blocks until the ticket is admitted and returns its lease.
//
// If ctx is done first the ticket leaves the line and ctx.Err() is
// returned. A ticket that was admitted concurrently with cancellation has
// its lease released before Wait returns the error.
func (t *Ticket) Wait(ctx context.Context) (*Lease, error) {
	select {
	case <-t.ready:
		return t.lease, t.err
	case <-ctx.Done():
	}

	s := t.s
	s.mu.Lock()
	if t.lease == nil && t.err == nil {
		s.removeLocked(t)
		t.err = ctx.Err()
		close(t.ready)
		s.mu.Unlock()
		s.logger.Debug("ticket cancelled", "seq", t.seq, "owner", t.owner)
		return nil, t.err
	}
	lease, err := t.lease, t.err
	s.mu.Unlock()

	if lease != nil {
		lease.Release()
		return nil, ctx.Err()
	}
	return nil, err
}

// admitNextLocked grants the slot to the head of the line.
// Caller holds s.mu and the slot is free.
func (s *Scheduler) admitNextLocked() {
	if len(s.queue) == 0 {
		return
	}
	t := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	if len(s.queue) == 0 {
		s.queue = nil
	}

	l := &Lease{
		s:        s,
		id:       s.ids.Generate(),
		seq:      t.seq,
		owner:    t.owner,
		admitted: time.Now(),
	}
	s.holder = l
	t.lease = l
	close(t.ready)

	s.logger.Debug("ticket admitted",
		"seq", t.seq,
		"owner", t.owner,
		"lease", l.id,
		"waited", l.admitted.Sub(t.enqueued),
	)
}

func (s *Scheduler) removeLocked(t *Ticket) {
	for i, q := range s.queue {
		if q == t {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// State is a snapshot of the slot.
type State struct {
	// HolderID is the id of the lease holding the slot, empty when free.
	HolderID string
	// Queued is the number of tickets waiting.
	Queued int
}

// Free reports whether nobody holds the slot.
func (st State) Free() bool {
	return st.HolderID == ""
}

func (st State) String() string {
	if st.Free() {
		return "free"
	}
	return fmt.Sprintf("held-by(%s)", st.HolderID)
}

// State returns a snapshot of the slot.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{Queued: len(s.queue)}
	if s.holder != nil {
		st.HolderID = s.holder.id
	}
	return st
}

// Len returns the number of tickets waiting for the slot.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close fails every waiting ticket with ErrClosed and blocks until the
// current holder, if any, releases the slot. Later Enqueue calls return
// tickets that fail immediately.
//
// Close must not be called while holding a lease; it would wait for itself.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		for _, t := range s.queue {
			t.err = ErrClosed
			close(t.ready)
		}
		s.queue = nil
	}

	for s.holder != nil {
		s.idle.Wait()
	}
}

type leaseKey struct{}

// WithLease returns a copy of ctx carrying l.
func WithLease(ctx context.Context, l *Lease) context.Context {
	return context.WithValue(ctx, leaseKey{}, l)
}

// LeaseFrom returns the lease carried by ctx if it was granted by s and
// still holds the slot.
func (s *Scheduler) LeaseFrom(ctx context.Context) (*Lease, bool) {
	l, ok := ctx.Value(leaseKey{}).(*Lease)
	if !ok || l == nil || l.s != s || !l.Held() {
		return nil, false
	}
	return l, true
}
