package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reelflow/internal/logging"
)

// LocalSubstrate executes tasks on a bounded goroutine pool inside the
// daemon process. It provides the same submission contract an external
// substrate would, so the orchestrator never knows the difference.
type LocalSubstrate struct {
	logger *slog.Logger
	pool   *errgroup.Group

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	groups map[string]*groupState
	runs   map[string]runScope
	closed bool
}

type runScope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type groupState struct {
	mu       sync.Mutex
	expected int
	results  []Result
	barrier  Barrier
	fired    bool
	ctx      context.Context
}

// NewLocalSubstrate constructs a substrate with workerCount concurrent
// task slots.
func NewLocalSubstrate(workerCount int, logger *slog.Logger) *LocalSubstrate {
	if workerCount <= 0 {
		workerCount = 4
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool := new(errgroup.Group)
	pool.SetLimit(workerCount)
	return &LocalSubstrate{
		logger:  logging.NewComponentLogger(logger, "tasks"),
		pool:    pool,
		baseCtx: ctx,
		cancel:  cancel,
		groups:  make(map[string]*groupState),
		runs:    make(map[string]runScope),
	}
}

// Submit schedules a fire-and-forget task.
func (l *LocalSubstrate) Submit(task Task) error {
	ctx, err := l.runContext(task.RunID)
	if err != nil {
		return err
	}
	l.pool.Go(func() error {
		if _, err := l.execute(ctx, task); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Error("task failed",
				logging.String("task", task.Name),
				logging.String(logging.FieldRunID, task.RunID),
				logging.Error(err),
			)
		}
		return nil
	})
	return nil
}

// SubmitGroup schedules the member tasks immediately; their results are
// retained until a barrier is attached.
func (l *LocalSubstrate) SubmitGroup(tasks []Task) (GroupHandle, error) {
	if len(tasks) == 0 {
		return GroupHandle{}, errors.New("tasks: empty group")
	}
	runID := tasks[0].RunID
	ctx, err := l.runContext(runID)
	if err != nil {
		return GroupHandle{}, err
	}

	id := uuid.NewString()
	gs := &groupState{expected: len(tasks), ctx: ctx}
	l.mu.Lock()
	l.groups[id] = gs
	l.mu.Unlock()

	var members sync.WaitGroup
	members.Add(len(tasks))
	for _, task := range tasks {
		task := task
		l.pool.Go(func() error {
			defer members.Done()
			value, execErr := l.execute(ctx, task)
			gs.mu.Lock()
			gs.results = append(gs.results, Result{Name: task.Name, Value: value, Err: execErr})
			gs.mu.Unlock()
			return nil
		})
	}

	go func() {
		members.Wait()
		l.fireBarrier(id)
	}()

	return GroupHandle{id: id}, nil
}

// SubmitBarrier attaches the continuation to a group. It fires once all
// members have reported, regardless of attach order.
func (l *LocalSubstrate) SubmitBarrier(handle GroupHandle, continuation Barrier) error {
	l.mu.Lock()
	gs, ok := l.groups[handle.id]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("tasks: unknown group %q", handle.id)
	}
	gs.mu.Lock()
	gs.barrier = continuation
	gs.mu.Unlock()
	l.fireBarrier(handle.id)
	return nil
}

// CancelRun cancels the context shared by a run's outstanding tasks.
// Tasks that already started may still finish and write artifacts.
func (l *LocalSubstrate) CancelRun(runID string) {
	l.mu.Lock()
	scope, ok := l.runs[runID]
	if ok {
		delete(l.runs, runID)
	}
	l.mu.Unlock()
	if ok {
		scope.cancel()
	}
}

// Close stops accepting tasks and waits for running ones to finish.
func (l *LocalSubstrate) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	_ = l.pool.Wait()
}

func (l *LocalSubstrate) runContext(runID string) (context.Context, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, errors.New("tasks: substrate closed")
	}
	if runID == "" {
		return l.baseCtx, nil
	}
	scope, ok := l.runs[runID]
	if !ok {
		ctx, cancel := context.WithCancel(l.baseCtx)
		scope = runScope{ctx: ctx, cancel: cancel}
		l.runs[runID] = scope
	}
	return scope.ctx, nil
}

// execute runs the task body, converting panics into errors so one
// misbehaving stage cannot take down the pool.
func (l *LocalSubstrate) execute(ctx context.Context, task Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.logger.Debug("task started",
		logging.String("task", task.Name),
		logging.String(logging.FieldRunID, task.RunID),
	)
	return task.Fn(ctx)
}

func (l *LocalSubstrate) fireBarrier(id string) {
	l.mu.Lock()
	gs, ok := l.groups[id]
	l.mu.Unlock()
	if !ok {
		return
	}

	gs.mu.Lock()
	ready := len(gs.results) == gs.expected && gs.barrier != nil && !gs.fired
	if ready {
		gs.fired = true
	}
	barrier := gs.barrier
	results := make([]Result, len(gs.results))
	copy(results, gs.results)
	ctx := gs.ctx
	gs.mu.Unlock()

	if !ready {
		return
	}

	l.mu.Lock()
	delete(l.groups, id)
	l.mu.Unlock()

	l.pool.Go(func() error {
		barrier(ctx, results)
		return nil
	})
}
