package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrFull is returned by Submit when the buffer has no room.
	ErrFull = errors.New("jobs: queue full")
	// ErrStopped is returned by Submit before Start or after Drain.
	ErrStopped = errors.New("jobs: queue not running")
)

// Handler processes one queued item.
type Handler[T any] func(ctx context.Context, item T) error

// Config sizes the worker pool.
type Config struct {
	Workers     int
	BufferSize  int
	MaxAttempts int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
	Logger  *zap.Logger
}

// Queue fans items out to a fixed pool of goroutines. Submit never blocks.
type Queue[T any] struct {
	name   string
	handle Handler[T]
	cfg    Config
	items  chan T

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	pending sync.WaitGroup
	workers sync.WaitGroup
	dropped atomic.Int64
}

// New builds a stopped queue.
func New[T any](name string, handle Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{name: name, handle: handle, cfg: cfg, items: make(chan T, cfg.BufferSize)}
}

// Start launches the workers. Calling it twice is a no-op. Cancelling ctx
// does not stop the workers; they run until Drain so accepted items are
// never stranded in the buffer.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	q.running = true
	for i := 1; i <= q.cfg.Workers; i++ {
		q.workers.Add(1)
		go q.run(i)
	}
	q.cfg.Logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Submit hands item to the pool, or drops it when the queue is stopped or full.
func (q *Queue[T]) Submit(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		q.dropped.Add(1)
		return ErrStopped
	}
	q.pending.Add(1)
	select {
	case q.items <- item:
		return nil
	default:
		q.pending.Done()
		q.dropped.Add(1)
		return ErrFull
	}
}

// Dropped reports how many items Submit rejected.
func (q *Queue[T]) Dropped() int64 {
	return q.dropped.Load()
}

// Drain stops intake, waits for accepted items until ctx expires and then stops the workers.
func (q *Queue[T]) Drain(ctx context.Context) {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		q.cfg.Logger.Warn("queue drain timed out", zap.String("queue", q.name), zap.Int("abandoned", len(q.items)))
	}
	q.cancel()
	q.workers.Wait()
	q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name))
}

func (q *Queue[T]) run(worker int) {
	defer q.workers.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case item := <-q.items:
			q.process(worker, item)
			q.pending.Done()
		}
	}
}

func (q *Queue[T]) process(worker int, item T) {
	for attempt := 1; ; attempt++ {
		err := q.handle(q.ctx, item)
		if err == nil {
			return
		}
		if attempt >= q.cfg.MaxAttempts {
			q.cfg.Logger.Error("job abandoned",
				zap.String("queue", q.name), zap.Int("worker", worker), zap.Int("attempts", attempt), zap.Error(err))
			return
		}
		q.cfg.Logger.Warn("job failed, retrying",
			zap.String("queue", q.name), zap.Int("worker", worker), zap.Int("attempt", attempt), zap.Error(err))

		timer := time.NewTimer(time.Duration(attempt) * q.cfg.Backoff)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
