package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	q := NewQueue("audit", func(ctx context.Context, job Job[string]) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.Payload)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[string]{ID: "1", Payload: "a"}))
	require.NoError(t, q.Enqueue(Job[string]{ID: "2", Payload: "b"}))
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

func TestQueueRetriesFailedJob(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[int]{ID: "1", Payload: 1}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	q.Stop()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueueEnqueueRequiresStart(t *testing.T) {
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job[int]{ID: "1"}))
}

func TestQueueEnqueueReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[int]{ID: "1"}))
	<-started
	require.NoError(t, q.Enqueue(Job[int]{ID: "2"}))
	err := q.Enqueue(Job[int]{ID: "3"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	q.Stop()
}

func TestQueueBackoffDoublesUpToCap(t *testing.T) {
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error { return nil }, QueueConfig{
		RetryDelay:    10 * time.Millisecond,
		MaxRetryDelay: 35 * time.Millisecond,
	})

	assert.Equal(t, 10*time.Millisecond, q.backoff(1))
	assert.Equal(t, 20*time.Millisecond, q.backoff(2))
	assert.Equal(t, 35*time.Millisecond, q.backoff(3))
	assert.Equal(t, 35*time.Millisecond, q.backoff(6))
}

func TestQueueStatsCountOutcomes(t *testing.T) {
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error {
		if job.Payload < 0 {
			return errors.New("rejected")
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4, MaxRetries: 0})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[int]{ID: "ok", Payload: 1}))
	require.NoError(t, q.Enqueue(Job[int]{ID: "bad", Payload: -1}))
	q.Stop()

	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Processed)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Zero(t, stats.Dropped)
}

func TestQueueEnqueueAfterCancelIsDropped(t *testing.T) {
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error { return nil }, QueueConfig{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	cancel()

	err := q.Enqueue(Job[int]{ID: "late"})
	assert.ErrorIs(t, err, ErrQueueStopped)
	q.Stop()

	assert.Equal(t, uint64(1), q.Stats().Dropped)
	assert.ErrorIs(t, q.Enqueue(Job[int]{ID: "after-stop"}), ErrQueueStopped)
}

func TestQueueStopRunsPendingRetry(t *testing.T) {
	var calls int32
	failed := make(chan struct{})
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(failed)
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 1, RetryDelay: time.Hour})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[int]{ID: "1"}))

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	q.Stop()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Processed)
	assert.Zero(t, stats.Failed)
}
