package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_RunsJobsInSubmissionOrder(t *testing.T) {
	w := NewWorker(nil)
	go func() { _ = w.Run(context.Background()) }()

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	for i := range 50 {
		wg.Add(1)
		require.True(t, w.Submit(context.Background(), func(context.Context) {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	wg.Wait()

	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)

	w.Stop()
	<-w.Done()
}

func TestWorker_HandsJobContextToJob(t *testing.T) {
	w := NewWorker(nil)
	go func() { _ = w.Run(context.Background()) }()
	defer func() {
		w.Stop()
		<-w.Done()
	}()

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "stmt-1")

	seen := make(chan any, 1)
	require.True(t, w.Submit(ctx, func(ctx context.Context) {
		seen <- ctx.Value(key{})
	}))
	assert.Equal(t, "stmt-1", <-seen)
}

func TestWorker_StopDrainsQueuedJobs(t *testing.T) {
	w := NewWorker(nil)

	var ran int
	for range 3 {
		require.True(t, w.Submit(context.Background(), func(context.Context) { ran++ }))
	}
	w.Stop()
	assert.False(t, w.Submit(context.Background(), func(context.Context) { ran++ }))

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 3, ran)

	select {
	case <-w.Done():
	default:
		t.Fatal("Done should be closed after Run returns")
	}
}

func TestWorker_RunStopsOnContextCancel(t *testing.T) {
	w := NewWorker(nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, w.Submit(context.Background(), func(context.Context) {}))
}
