// Package jobs provides background job scheduling for sync work.
//
// Two schedulers implement the same interface: Inline runs jobs on the
// caller's goroutine and propagates their errors (used by request handlers
// that want synchronous results), and Pool runs jobs on a bounded worker
// pool with retry handling for rate limits and integrity conflicts.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is a unit of work that can describe itself for status reporting.
type Job interface {
	// Describe returns a stable job name and its arguments, used for
	// logging and the task status API.
	Describe() (name string, args []string)

	// Run executes the job. Errors are classified by the scheduler:
	// rate-limit errors reschedule the job for the reset instant,
	// integrity conflicts retry with exponential backoff, and anything
	// else marks the job failed.
	Run(ctx context.Context) error
}

// State is the lifecycle phase of a scheduled job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Status is a snapshot of a scheduled job's progress.
type Status struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Args       []string   `json:"args,omitempty"`
	State      State      `json:"state"`
	Error      string     `json:"error,omitempty"`
	Attempts   int        `json:"attempts"`
	NotBefore  *time.Time `json:"notBefore,omitempty"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Scheduler accepts jobs for execution.
type Scheduler interface {
	// Enqueue schedules a job to run as soon as a worker is available.
	Enqueue(ctx context.Context, job Job) (uuid.UUID, error)

	// EnqueueAt schedules a job to run no earlier than at.
	EnqueueAt(ctx context.Context, job Job, at time.Time) (uuid.UUID, error)

	// Group runs the members concurrently and runs finalizer once every
	// member has settled, whether or not any of them failed. The returned
	// ID tracks the finalizer.
	Group(ctx context.Context, members []Job, finalizer Job) (uuid.UUID, error)

	// Status reports the progress of a previously scheduled job.
	Status(id uuid.UUID) (Status, bool)

	// Eager reports whether jobs run on the caller's goroutine. Handlers
	// use this to decide between synchronous responses and 202 Accepted.
	Eager() bool
}
