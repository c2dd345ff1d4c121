package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Submit after Shutdown.
var ErrQueueClosed = errors.New("delivery: queue closed")

// Queue is an in-process notification channel for object stores without a
// notification target of their own. A fixed set of workers drains it into a
// Runner; Submit blocks when the buffer is full.
type Queue struct {
	runner  *Runner
	workers int
	jobs    chan string
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// NewQueue creates a queue with the given number of workers. Call Start to launch them.
func NewQueue(runner *Runner, workers int, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		runner:  runner,
		workers: workers,
		jobs:    make(chan string, workers*16),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// Start launches the worker goroutines
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Submit enqueues a storage key
func (q *Queue) Submit(ctx context.Context, key string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- key:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ctx.Done():
		return ErrQueueClosed
	}
}

// Shutdown stops accepting keys and waits for queued ones to drain. If ctx
// expires first, in-flight deliveries are cancelled.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for key := range q.jobs {
		start := time.Now()
		if err := q.runner.Deliver(q.ctx, key); err != nil {
			q.logger.Error("Queued notification not settled",
				"worker_id", id, "key", key, "latency", time.Since(start), "error", err)
			continue
		}
		q.logger.Debug("Queued notification settled", "worker_id", id, "key", key, "latency", time.Since(start))
	}
}
