// Package workqueue schedules reconciliation work. Tasks are admitted in
// FIFO order and started as the concurrency strategy allows, with
// source-bound io work throttled separately from local compute so a slow
// export cannot hold up ingestion. The queue is a scheduler, not a ledger:
// run state lives on the runs themselves, so finished tasks leave the
// queue immediately and only cumulative counters remain.
package workqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Queue runs tasks under a concurrency strategy. Tasks are never retried;
// a task that needs another attempt enqueues a fresh one.
type Queue struct {
	mu        sync.Mutex
	strategy  ConcurrencyStrategy
	tasks     []*taskState
	cancelled bool

	enqueued       int
	completed      int
	failed         int
	cancelledTasks int

	// idle is closed whenever the task list empties.
	idle chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithStrategy sets the concurrency strategy.
func WithStrategy(strategy ConcurrencyStrategy) QueueOption {
	return func(q *Queue) {
		if strategy != nil {
			q.strategy = strategy
		}
	}
}

// New creates a work queue. Without options it serializes each task class.
func New(logger *zap.Logger, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		strategy: NewSerializedStrategy(),
		idle:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("workqueue"),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Enqueue admits a task and starts it once the strategy has a slot for its
// class. A cancelled queue drops the task.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelled {
		q.logger.Warn("queue cancelled, dropping task",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		return
	}

	q.wakeLocked()
	q.tasks = append(q.tasks, &taskState{task: task, status: TaskStatusPending})
	q.enqueued++

	q.logger.Info("task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.String("task_class", string(task.Class())))

	q.tryStartTasksLocked()
}

// tryStartTasksLocked starts every pending task the strategy grants a slot,
// in admission order. Must be called with the lock held.
func (q *Queue) tryStartTasksLocked() {
	if q.cancelled {
		return
	}

	for _, st := range q.tasks {
		if st.status != TaskStatusPending {
			continue
		}
		if !q.strategy.TryAcquire(st.task.Class()) {
			continue
		}

		st.status = TaskStatusRunning
		st.startedAt = time.Now()

		q.logger.Info("starting task",
			zap.String("task_id", st.task.ID()),
			zap.String("task_name", st.task.Name()))

		go q.runTask(st)
	}
}

func (q *Queue) runTask(st *taskState) {
	err := st.task.Execute(q.ctx, q)
	q.finishTask(st, err)
}

// finishTask releases the task's slot, drops it from the queue, and counts
// its outcome.
func (q *Queue) finishTask(st *taskState, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.strategy.Release(st.task.Class())
	q.removeLocked(st)

	switch {
	case err == nil:
		q.completed++
		q.logger.Info("task completed",
			zap.String("task_id", st.task.ID()),
			zap.String("task_name", st.task.Name()))
	case errors.Is(err, context.Canceled):
		q.cancelledTasks++
		q.logger.Info("task cancelled",
			zap.String("task_id", st.task.ID()),
			zap.String("task_name", st.task.Name()))
	default:
		q.failed++
		q.logger.Error("task failed",
			zap.String("task_id", st.task.ID()),
			zap.String("task_name", st.task.Name()),
			zap.Error(err))
	}

	q.settleLocked()
	q.tryStartTasksLocked()
}

func (q *Queue) removeLocked(st *taskState) {
	for i, cur := range q.tasks {
		if cur == st {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return
		}
	}
}

// wakeLocked reopens the idle channel when new work arrives after a drain.
func (q *Queue) wakeLocked() {
	select {
	case <-q.idle:
		q.idle = make(chan struct{})
	default:
	}
}

// settleLocked closes the idle channel once the task list empties.
func (q *Queue) settleLocked() {
	if len(q.tasks) != 0 {
		return
	}
	select {
	case <-q.idle:
	default:
		close(q.idle)
	}
}

// Snapshot returns the tasks still in the queue, in admission order.
func (q *Queue) Snapshot() []TaskSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]TaskSnapshot, len(q.tasks))
	for i, st := range q.tasks {
		out[i] = st.snapshot()
	}
	return out
}

// Drain blocks until the queue is empty or the context ends. Tasks
// enqueued while draining extend the wait.
func (q *Queue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return nil
		}
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Cancel stops the queue: pending tasks are dropped, running tasks see
// their context end, and later enqueues are rejected.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelled {
		return
	}
	q.cancelled = true
	q.cancel()

	// Tasks that never started leave now. Running tasks leave through
	// finishTask once they observe the context.
	kept := q.tasks[:0]
	dropped := 0
	for _, st := range q.tasks {
		if st.status == TaskStatusPending {
			q.cancelledTasks++
			dropped++
			continue
		}
		kept = append(kept, st)
	}
	q.tasks = kept

	q.logger.Info("queue cancelled",
		zap.Int("dropped", dropped),
		zap.Int("running", len(kept)))

	q.settleLocked()
}

// Stats summarizes the queue: live counts plus cumulative outcomes.
type Stats struct {
	Enqueued  int `json:"enqueued"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Stats reports the queue's counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		Enqueued:  q.enqueued,
		Completed: q.completed,
		Failed:    q.failed,
		Cancelled: q.cancelledTasks,
	}
	for _, st := range q.tasks {
		if st.status == TaskStatusRunning {
			s.Running++
		} else {
			s.Pending++
		}
	}
	return s
}
