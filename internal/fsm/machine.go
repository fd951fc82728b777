package fsm

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"reelflow/internal/logging"
)

// MetaFailureReason is the metadata key recording why a run failed.
const MetaFailureReason = "failure_reason"

// persister saves snapshots; implemented by Repository.
type persister interface {
	save(ctx context.Context, snap Snapshot) error
}

// Machine tracks the current state, visit history, and metadata of one
// run. All methods are safe for concurrent use within a process;
// cross-process safety comes from the table failing closed against
// stale state.
type Machine struct {
	runID string

	mu       sync.Mutex
	current  State
	history  []State
	metadata map[string]string

	store  persister
	logger *slog.Logger
}

// TransitionOption adjusts a single transition attempt.
type TransitionOption func(*transitionConfig)

type transitionConfig struct {
	guard    func() bool
	metadata map[string]string
}

// WithGuard attaches a caller-supplied predicate that must hold for the
// transition to proceed.
func WithGuard(guard func() bool) TransitionOption {
	return func(c *transitionConfig) { c.guard = guard }
}

// WithMetadata merges the supplied entries into the machine metadata
// when the transition succeeds.
func WithMetadata(meta map[string]string) TransitionOption {
	return func(c *transitionConfig) { c.metadata = meta }
}

func newMachine(runID string, initial State, store persister, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Machine{
		runID:    runID,
		current:  initial,
		history:  []State{initial},
		metadata: make(map[string]string),
		store:    store,
		logger:   logger.With(logging.String(logging.FieldRunID, runID)),
	}
}

// RunID returns the owning run identifier.
func (m *Machine) RunID() string { return m.runID }

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// History returns the ordered list of states ever visited.
func (m *Machine) History() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]State, len(m.history))
	copy(cp, m.history)
	return cp
}

// Meta returns a metadata value.
func (m *Machine) Meta(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.metadata[key]
	return value, ok
}

// Counter returns a metadata counter, defaulting to zero.
func (m *Machine) Counter(key string) int {
	value, ok := m.Meta(key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

// IncrementCounter bumps a metadata counter and persists the snapshot.
func (m *Machine) IncrementCounter(ctx context.Context, key string) int {
	m.mu.Lock()
	n := 0
	if raw, ok := m.metadata[key]; ok {
		if parsed, err := strconv.Atoi(raw); err == nil {
			n = parsed
		}
	}
	n++
	m.metadata[key] = strconv.Itoa(n)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.persist(ctx, snap)
	return n
}

// IsTerminal reports whether the machine reached End or Failed.
func (m *Machine) IsTerminal() bool {
	return m.Current().IsTerminal()
}

// Transition attempts to move to target. It fails closed: when the
// current -> target edge is not in the table, or the guard rejects it,
// nothing is mutated and false is returned. On success the snapshot is
// persisted synchronously before returning; a persistence failure is
// logged but does not roll back the in-memory transition.
func (m *Machine) Transition(ctx context.Context, target State, opts ...TransitionOption) bool {
	var cfg transitionConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	m.mu.Lock()
	from := m.current
	if !CanTransition(from, target) {
		m.mu.Unlock()
		m.logger.Warn("invalid state transition rejected",
			logging.String("from", string(from)),
			logging.String("to", string(target)),
			logging.String(logging.FieldEventType, "transition_rejected"),
		)
		return false
	}
	if cfg.guard != nil && !cfg.guard() {
		m.mu.Unlock()
		m.logger.Info("transition guard rejected",
			logging.String("from", string(from)),
			logging.String("to", string(target)),
		)
		return false
	}

	m.current = target
	m.history = append(m.history, target)
	for k, v := range cfg.metadata {
		m.metadata[k] = v
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("state transition",
		logging.String("from", string(from)),
		logging.String("to", string(target)),
		logging.String(logging.FieldEventType, "transition"),
	)
	m.persist(ctx, snap)
	return true
}

// Fail moves the run to Failed with the reason recorded in metadata.
// Calling Fail on an already failed machine is a no-op success.
func (m *Machine) Fail(ctx context.Context, reason string) bool {
	if m.Current() == StateFailed {
		return true
	}
	ok := m.Transition(ctx, StateFailed, WithMetadata(map[string]string{MetaFailureReason: reason}))
	if ok {
		m.logger.Error("run failed", logging.String("reason", reason))
	}
	return ok
}

// Snapshot returns the serializable view of the machine.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	history := make([]string, len(m.history))
	for i, s := range m.history {
		history[i] = string(s)
	}
	metadata := make(map[string]string, len(m.metadata))
	for k, v := range m.metadata {
		metadata[k] = v
	}
	return Snapshot{
		Version:      snapshotVersion,
		RunID:        m.runID,
		CurrentState: string(m.current),
		History:      history,
		Metadata:     metadata,
	}
}

// persist writes the snapshot through the repository. The in-memory
// authority wins for this process; other processes may observe stale
// state until a later write succeeds.
func (m *Machine) persist(ctx context.Context, snap Snapshot) {
	if m.store == nil {
		return
	}
	if err := m.store.save(ctx, snap); err != nil {
		m.logger.Error("persist snapshot failed; state store may lag this process",
			logging.Error(err),
			logging.String(logging.FieldState, snap.CurrentState),
			logging.String(logging.FieldEventType, "snapshot_persist_failed"),
		)
	}
}
