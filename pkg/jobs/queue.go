// Package jobs runs background tasks on a fixed worker pool. The queue is
// in-memory only; anything still buffered when the process exits is lost,
// which suits exports that the caller can simply request again.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of queued work.
type Task struct {
	ID         string
	Kind       string
	Payload    interface{}
	Attempt    int
	EnqueuedAt time.Time
}

// Handler executes a task. A returned error triggers a retry until the
// attempt budget runs out.
type Handler func(ctx context.Context, task Task) error

// Options tunes the pool. Zero values fall back to small defaults sized for
// a handful of concurrent report renders.
type Options struct {
	Workers      int
	Depth        int
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// Queue dispatches tasks to a pool of worker goroutines.
type Queue struct {
	name    string
	handler Handler
	opts    Options

	tasks chan Task

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewQueue builds a stopped queue; call Start before submitting.
func NewQueue(name string, handler Handler, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Depth <= 0 {
		opts.Depth = opts.Workers * 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		opts:    opts,
		tasks:   make(chan Task, opts.Depth),
	}
}

// Start spins up the workers. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.running = true
	q.opts.Logger.Info("worker pool started",
		zap.String("queue", q.name),
		zap.Int("workers", q.opts.Workers))
}

// Stop cancels the workers and blocks until they exit. Buffered tasks are
// dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.running = false
	q.mu.Unlock()

	q.wg.Wait()
	q.opts.Logger.Info("worker pool stopped", zap.String("queue", q.name))
}

// Submit places a task on the queue, blocking while the buffer is full.
func (q *Queue) Submit(task Task) error {
	q.mu.Lock()
	ctx := q.ctx
	running := q.running
	q.mu.Unlock()

	if !running {
		return fmt.Errorf("queue %s is not running", q.name)
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s shut down: %w", q.name, ctx.Err())
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			if err := q.handler(q.ctx, task); err != nil {
				q.retry(task, err)
			}
		}
	}
}

func (q *Queue) retry(task Task, cause error) {
	if task.Attempt >= q.opts.MaxRetries {
		q.opts.Logger.Error("task abandoned after retries",
			zap.String("queue", q.name),
			zap.String("task_id", task.ID),
			zap.String("kind", task.Kind),
			zap.Int("attempts", task.Attempt+1),
			zap.Error(cause))
		return
	}
	task.Attempt++
	q.opts.Logger.Warn("task failed, scheduling retry",
		zap.String("queue", q.name),
		zap.String("task_id", task.ID),
		zap.Int("attempt", task.Attempt),
		zap.Error(cause))

	time.AfterFunc(q.opts.RetryBackoff, func() {
		select {
		case <-q.ctx.Done():
		default:
			if err := q.Submit(task); err != nil {
				q.opts.Logger.Error("retry submit failed",
					zap.String("queue", q.name),
					zap.String("task_id", task.ID),
					zap.Error(err))
			}
		}
	})
}
