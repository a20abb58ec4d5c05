package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestScheduler(ids ...string) *Scheduler {
	return New(WithIDGenerator(NewFixedGenerator(ids...)))
}

func TestEnqueue_AdmitsImmediatelyWhenFree(t *testing.T) {
	s := newTestScheduler("lease-1")

	ticket := s.Enqueue("first")
	lease, err := ticket.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "lease-1", lease.ID())
	assert.Equal(t, "first", lease.Owner())
	assert.Equal(t, int64(1), lease.Seq())
	assert.True(t, lease.Held())
	assert.Equal(t, "held-by(lease-1)", s.State().String())

	lease.Release()
	assert.False(t, lease.Held())
	assert.Equal(t, "free", s.State().String())
	assert.True(t, s.State().Free())
}

func TestEnqueue_WaitsBehindHolder(t *testing.T) {
	s := newTestScheduler("lease-1", "lease-2")
	ctx := context.Background()

	first, err := s.Enqueue("first").Wait(ctx)
	require.NoError(t, err)

	second := s.Enqueue("second")
	assert.Equal(t, 1, s.Len())

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = second.Wait(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, s.Len(), "cancelled ticket leaves the line")

	first.Release()
	assert.Equal(t, "free", s.State().String())
}

func TestRelease_HandsSlotInArrivalOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	holder, err := s.Enqueue("holder").Wait(ctx)
	require.NoError(t, err)

	const n = 20
	tickets := make([]*Ticket, n)
	for i := range tickets {
		tickets[i] = s.Enqueue("waiter")
	}
	require.Equal(t, n, s.Len())

	var mu sync.Mutex
	var order []int64

	g, gctx := errgroup.WithContext(ctx)
	// Start waiters in reverse so goroutine start order cannot explain the result.
	for i := n - 1; i >= 0; i-- {
		ticket := tickets[i]
		g.Go(func() error {
			lease, err := ticket.Wait(gctx)
			if err != nil {
				return err
			}
			mu.Lock()
			order = append(order, lease.Seq())
			mu.Unlock()
			lease.Release()
			return nil
		})
	}

	holder.Release()
	require.NoError(t, g.Wait())

	require.Len(t, order, n)
	for i := 1; i < n; i++ {
		assert.Less(t, order[i-1], order[i], "admission out of order at %d", i)
	}
}

func TestRelease_NoBarging(t *testing.T) {
	s := New()
	ctx := context.Background()

	holder, err := s.Enqueue("holder").Wait(ctx)
	require.NoError(t, err)
	waiting := s.Enqueue("waiting")

	holder.Release()

	// The slot already belongs to the waiting ticket.
	late := s.Enqueue("late")
	assert.Equal(t, 1, s.Len())

	lease, err := waiting.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "waiting", lease.Owner())

	lease.Release()
	lateLease, err := late.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", lateLease.Owner())
	lateLease.Release()
}

func TestRelease_Idempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.Enqueue("first").Wait(ctx)
	require.NoError(t, err)
	first.Release()

	second, err := s.Enqueue("second").Wait(ctx)
	require.NoError(t, err)

	// A stale release must not free someone else's slot.
	first.Release()
	assert.True(t, second.Held())
	second.Release()
}

func TestWait_CancelledAfterAdmissionReleases(t *testing.T) {
	s := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Admitted on enqueue, but the caller has already given up.
	ticket := s.Enqueue("gone")
	lease, err := ticket.Wait(ctx)
	if err == nil {
		// ready won the select
		require.NotNil(t, lease)
		lease.Release()
	}
	assert.True(t, s.State().Free())
}

func TestClose_FailsWaitingTickets(t *testing.T) {
	s := New()
	ctx := context.Background()

	holder, err := s.Enqueue("holder").Wait(ctx)
	require.NoError(t, err)
	waiting := s.Enqueue("waiting")

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	_, err = waiting.Wait(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	select {
	case <-closed:
		t.Fatal("Close returned while the slot was held")
	case <-time.After(20 * time.Millisecond):
	}

	holder.Release()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after release")
	}

	_, err = s.Enqueue("after").Wait(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLeaseFrom(t *testing.T) {
	s := New()
	other := New()
	ctx := context.Background()

	_, ok := s.LeaseFrom(ctx)
	assert.False(t, ok)

	lease, err := s.Enqueue("owner").Wait(ctx)
	require.NoError(t, err)
	leased := WithLease(ctx, lease)

	got, ok := s.LeaseFrom(leased)
	require.True(t, ok)
	assert.Same(t, lease, got)

	_, ok = other.LeaseFrom(leased)
	assert.False(t, ok, "lease belongs to a different scheduler")

	lease.Release()
	_, ok = s.LeaseFrom(leased)
	assert.False(t, ok, "released lease is not reported")
}
