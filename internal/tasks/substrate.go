package tasks

import "context"

// Task is one schedulable unit of work. Name identifies the task in
// logs; RunID scopes cancellation.
type Task struct {
	Name  string
	RunID string
	Fn    func(ctx context.Context) (any, error)
}

// Result is the completion record of one group member. A member's
// failure is delivered here rather than suppressing the barrier: the
// continuation must treat Err != nil the same as a partial result.
type Result struct {
	Name  string
	Value any
	Err   error
}

// GroupHandle identifies a submitted group awaiting its barrier.
type GroupHandle struct {
	id string
}

// Barrier receives the full result list of a group, in no guaranteed
// order, exactly once.
type Barrier func(ctx context.Context, results []Result)

// Substrate is the task execution facility contract.
type Substrate interface {
	// Submit schedules a fire-and-forget task.
	Submit(task Task) error
	// SubmitGroup schedules independent tasks that run concurrently.
	SubmitGroup(tasks []Task) (GroupHandle, error)
	// SubmitBarrier schedules the continuation to run once all members
	// of the group have completed.
	SubmitBarrier(handle GroupHandle, continuation Barrier) error
	// CancelRun requests best-effort cancellation of outstanding tasks
	// for a run. Tasks already executing may still complete and write
	// artifacts; terminal runs ignore such late writes.
	CancelRun(runID string)
}
