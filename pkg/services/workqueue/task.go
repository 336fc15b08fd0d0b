package workqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the scheduling state of a task still in the queue.
// Finished tasks leave the queue and show up only in its Stats counters.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
)

// TaskClass categorizes tasks by the resource they contend for.
type TaskClass string

const (
	// TaskClassIO marks tasks dominated by external reads: reconciliation
	// runs pulling from databases, object stores, or files.
	TaskClassIO TaskClass = "io"

	// TaskClassCompute marks tasks doing local work: report exports,
	// profiling over already-loaded datasets.
	TaskClassCompute TaskClass = "compute"
)

// Task is a unit of work the queue schedules.
type Task interface {
	// ID returns a unique identifier for this task.
	ID() string

	// Name returns a human-readable name for logging and status output.
	Name() string

	// Class returns the resource class this task contends for.
	// The queue's concurrency strategy schedules each class separately.
	Class() TaskClass

	// Execute runs the task. The context ends when the queue is cancelled;
	// the enqueuer accepts follow-up tasks.
	Execute(ctx context.Context, enqueuer TaskEnqueuer) error
}

// TaskEnqueuer allows tasks to enqueue follow-up tasks.
type TaskEnqueuer interface {
	Enqueue(task Task)
}

// taskState tracks a task while it waits or runs. All access happens under
// the queue's lock.
type taskState struct {
	task      Task
	status    TaskStatus
	startedAt time.Time
}

func (st *taskState) snapshot() TaskSnapshot {
	s := TaskSnapshot{
		ID:     st.task.ID(),
		Name:   st.task.Name(),
		Class:  st.task.Class(),
		Status: st.status,
	}
	if !st.startedAt.IsZero() {
		started := st.startedAt
		s.StartedAt = &started
	}
	return s
}

// TaskSnapshot is an immutable view of a queued task.
type TaskSnapshot struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Class     TaskClass  `json:"class"`
	Status    TaskStatus `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// BaseTask provides ID, Name, and Class for concrete tasks to embed.
type BaseTask struct {
	id    string
	name  string
	class TaskClass
}

// NewBaseTask creates a base task with a fresh ID.
func NewBaseTask(name string, class TaskClass) BaseTask {
	return BaseTask{
		id:    uuid.New().String(),
		name:  name,
		class: class,
	}
}

func (t BaseTask) ID() string { return t.id }

func (t BaseTask) Name() string { return t.name }

func (t BaseTask) Class() TaskClass { return t.class }
