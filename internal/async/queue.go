// Package async runs background jobs on a bounded worker pool.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one outbound message.
type Job struct {
	SessionID     string
	ParticipantID string
	To            string
	Body          string
}

// Handler processes one job.
type Handler func(ctx context.Context, job Job) error

// Queue fans jobs out to a fixed number of workers.
type Queue struct {
	handle  Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// quit wakes producers blocked on a full buffer during Shutdown.
	quit     chan struct{}
	quitOnce sync.Once

	// mu guards closed and the close of ch. Producers share it for reading.
	mu     sync.RWMutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewQueue starts the workers immediately.
func NewQueue(handle Handler, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		handle:  handle,
		logger:  logger,
		workers: 2,
		timeout: 30 * time.Second,
		ch:      make(chan Job, 256),
		quit:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.handle(ctx, job)
					cancel()

					if err != nil {
						q.logger.Error("job failed", "worker_id", workerID, "session_id", job.SessionID, "participant_id", job.ParticipantID, "error", err)
					} else {
						q.logger.Info("job done", "worker_id", workerID, "session_id", job.SessionID, "participant_id", job.ParticipantID)
					}
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue adds a job, blocking when the buffer is full. Jobs enqueued after
// Shutdown, or still waiting for room when it starts, are dropped.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "session_id", job.SessionID)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Debug("job queued", "session_id", job.SessionID, "participant_id", job.ParticipantID)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "session_id", job.SessionID)
	select {
	case q.ch <- job:
		return nil
	case <-q.quit:
		q.logger.Warn("dropping job: queue is shutting down", "session_id", job.SessionID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (q *Queue) Shutdown(ctx context.Context) {
	q.quitOnce.Do(func() { close(q.quit) })

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
