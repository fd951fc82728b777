package fsm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"reelflow/internal/logging"
	"reelflow/internal/statestore"
)

// ErrNotFound reports that no snapshot exists for a run.
var ErrNotFound = errors.New("fsm: run not found")

const snapshotKeyPrefix = "fsm:"

// Repository owns machine persistence and the process-local cache.
//
// The state store is authoritative across processes: Load always reads
// it first so one role observes the other's transitions. The local map
// is a best-effort cache consulted only when the store is unreachable,
// and review operations must call Invalidate before trusting a read.
type Repository struct {
	store  statestore.Store
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*Machine
}

// NewRepository constructs a repository persisting snapshots with ttl.
func NewRepository(store statestore.Store, ttl time.Duration, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Repository{
		store:  store,
		ttl:    ttl,
		logger: logging.NewComponentLogger(logger, "fsm"),
		cache:  make(map[string]*Machine),
	}
}

// Create initializes a machine in Init and persists its first snapshot.
func (r *Repository) Create(ctx context.Context, runID string) (*Machine, error) {
	machine := newMachine(runID, StateInit, r, r.logger)
	if err := r.save(ctx, machine.Snapshot()); err != nil {
		return nil, fmt.Errorf("persist initial snapshot: %w", err)
	}
	r.cacheMachine(machine)
	return machine, nil
}

// Load fetches the machine for a run, store-first. When the store is
// unreachable the cached copy is returned and flagged as possibly
// stale; a missing snapshot yields ErrNotFound.
func (r *Repository) Load(ctx context.Context, runID string) (*Machine, error) {
	data, err := r.store.Get(ctx, snapshotKeyPrefix+runID)
	switch {
	case err == nil:
		snap, decodeErr := DecodeSnapshot(data)
		if decodeErr != nil {
			return nil, decodeErr
		}
		machine, buildErr := r.machineFromSnapshot(snap)
		if buildErr != nil {
			return nil, buildErr
		}
		r.cacheMachine(machine)
		return machine, nil

	case errors.Is(err, statestore.ErrNotFound):
		// The run may have expired out of the store while this process
		// still holds it; a missing key means the run is unknown.
		r.forget(runID)
		return nil, ErrNotFound

	default:
		if cached := r.cached(runID); cached != nil {
			r.logger.Warn("state store unreachable; serving cached machine which may be stale",
				logging.String(logging.FieldRunID, runID),
				logging.Error(err),
			)
			return cached, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
}

// ListRunIDs returns the run identifiers with a live snapshot in the
// store, for recovery scans after a restart.
func (r *Repository) ListRunIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx, snapshotKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	runIDs := make([]string, 0, len(keys))
	for _, key := range keys {
		runIDs = append(runIDs, strings.TrimPrefix(key, snapshotKeyPrefix))
	}
	return runIDs, nil
}

// Invalidate drops the process-local cache entry so the next Load
// observes transitions made by the other process role.
func (r *Repository) Invalidate(runID string) {
	r.forget(runID)
}

// Delete removes the persisted snapshot and cache entry.
func (r *Repository) Delete(ctx context.Context, runID string) error {
	r.forget(runID)
	return r.store.Delete(ctx, snapshotKeyPrefix+runID)
}

func (r *Repository) machineFromSnapshot(snap Snapshot) (*Machine, error) {
	current, ok := ParseState(snap.CurrentState)
	if !ok {
		return nil, fmt.Errorf("snapshot has unknown state %q", snap.CurrentState)
	}
	machine := newMachine(snap.RunID, current, r, r.logger)
	machine.history = machine.history[:0]
	for _, name := range snap.History {
		state, ok := ParseState(name)
		if !ok {
			return nil, fmt.Errorf("snapshot history has unknown state %q", name)
		}
		machine.history = append(machine.history, state)
	}
	if len(machine.history) == 0 {
		machine.history = []State{current}
	}
	for k, v := range snap.Metadata {
		machine.metadata[k] = v
	}
	return machine, nil
}

func (r *Repository) save(ctx context.Context, snap Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}
	return r.store.Set(ctx, snapshotKeyPrefix+snap.RunID, data, r.ttl)
}

func (r *Repository) cacheMachine(machine *Machine) {
	r.mu.Lock()
	r.cache[machine.RunID()] = machine
	r.mu.Unlock()
}

func (r *Repository) cached(runID string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache[runID]
}

func (r *Repository) forget(runID string) {
	r.mu.Lock()
	delete(r.cache, runID)
	r.mu.Unlock()
}
