package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesItems(t *testing.T) {
	var sum atomic.Int64
	q := New("sum", func(_ context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	}, Config{Workers: 3})
	q.Start(context.Background())

	for i := 1; i <= 10; i++ {
		require.NoError(t, q.Submit(i))
	}
	q.Drain(context.Background())
	assert.Equal(t, int64(55), sum.Load())
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	q := New("retry", func(context.Context, string) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, Config{MaxAttempts: 3, Backoff: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Submit("entry"))
	q.Drain(context.Background())
	assert.Equal(t, int32(3), attempts.Load())
}

func TestQueueGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	q := New("fail", func(context.Context, string) error {
		attempts.Add(1)
		return errors.New("permanent")
	}, Config{MaxAttempts: 2, Backoff: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Submit("entry"))
	q.Drain(context.Background())
	assert.Equal(t, int32(2), attempts.Load())
}

func TestQueueOutlivesStartContext(t *testing.T) {
	var handled atomic.Int32
	q := New("detached", func(context.Context, int) error {
		handled.Add(1)
		return nil
	}, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	cancel()

	require.NoError(t, q.Submit(1))
	drainCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	started := time.Now()
	q.Drain(drainCtx)

	assert.Equal(t, int32(1), handled.Load())
	assert.Less(t, time.Since(started), time.Second)
}

func TestQueueSubmitWhenStopped(t *testing.T) {
	q := New("idle", func(context.Context, int) error { return nil }, Config{})
	assert.ErrorIs(t, q.Submit(1), ErrStopped)

	q.Start(context.Background())
	q.Drain(context.Background())
	assert.ErrorIs(t, q.Submit(2), ErrStopped)
	assert.Equal(t, int64(2), q.Dropped())
}

func TestQueueSubmitWhenFull(t *testing.T) {
	release := make(chan struct{})
	q := New("full", func(context.Context, int) error {
		<-release
		return nil
	}, Config{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	var full bool
	for i := 0; i < 5 && !full; i++ {
		full = errors.Is(q.Submit(i), ErrFull)
	}
	close(release)
	q.Drain(context.Background())

	assert.True(t, full)
	assert.GreaterOrEqual(t, q.Dropped(), int64(1))
}

func TestQueueDrainHonoursDeadline(t *testing.T) {
	q := New("stuck", func(ctx context.Context, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	}, Config{MaxAttempts: 1})
	q.Start(context.Background())
	require.NoError(t, q.Submit(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	q.Drain(ctx)
	assert.Less(t, time.Since(start), time.Second)
}
