// Package tasks implements the background execution substrate: named tasks
// running on one-shot or recurring schedules, a scheduler loop, a worker loop
// with a bounded pool for parallel tasks, per-task bounded history, and a
// durable output store with rotation.
package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// DefaultMaxHistory bounds the in-memory history kept per task.
const DefaultMaxHistory = 10

// WorkFunc is the unit of work a task runs. When the task uses history,
// previous holds earlier run records in oldest-first order.
type WorkFunc func(ctx context.Context, previous []RunRecord) (string, error)

// RunRecord is one completed execution of a task. The same shape is kept in
// the bounded in-memory history and written as the durable output file.
type RunRecord struct {
	TaskName  string    `json:"task_name"`
	RunNumber int       `json:"run_number"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Spec names the work a task performs when no WorkFunc is supplied directly:
// either a builtin function or a prompt sent through the completion service.
// Exactly one field is set.
type Spec struct {
	Builtin string `json:"builtin,omitempty"`
	Prompt  string `json:"prompt,omitempty"`
}

// IsZero reports whether the spec names no work source.
func (s Spec) IsZero() bool { return s.Builtin == "" && s.Prompt == "" }

// WorkResolver turns a task spec into a runnable work function. Implemented
// outside this package so the registry of builtins stays decoupled.
type WorkResolver interface {
	Resolve(spec Spec) (WorkFunc, error)
}

// Task is a named unit of background work plus its runtime state. Runtime
// fields are owned by the Manager and must only be read through its query
// surface once the task is registered.
type Task struct {
	ID   string
	Name string

	Spec Spec     // resolved at registration when Func is nil
	Func WorkFunc // the work to run

	Interval   time.Duration // 0 = one-shot
	Cron       *CronExpr     // optional, mutually exclusive with Interval
	Parallel   bool
	UseHistory bool
	MaxHistory int // 0 = DefaultMaxHistory

	Status   TaskStatus
	LastRun  time.Time
	RunCount int
	Result   string
	Error    string
	History  []RunRecord

	queued bool // set while sitting in the run queue
	cancel context.CancelFunc
}

// IsRecurring reports whether the task runs on a schedule.
func (t *Task) IsRecurring() bool { return t.Interval > 0 || t.Cron != nil }

// GenerateTaskID returns a short unique task identifier.
func GenerateTaskID() string {
	return "task_" + uuid.NewString()[:8]
}
