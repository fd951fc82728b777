package run

import (
	"sync"
	"time"
)

// Artifact slot names used across the pipeline.
const (
	ArtifactScript = "script"
	ArtifactLayout = "layout"
	ArtifactVideo  = "video"
)

// Run is the mutable record for one pipeline execution.
//
// The FSM snapshot in the state store remains the cross-process
// authority for State; the copy here is what the owning process last
// observed. All other fields live only in the run record and on disk.
type Run struct {
	mu sync.Mutex

	ID       string
	Spec     Spec
	State    string
	Progress float64
	// CreatedAt is recorded when the request is accepted.
	CreatedAt time.Time

	artifacts map[string]string
	logs      []string
	metadata  map[string]string
}

// New creates a run record for an accepted request.
func New(id string, spec Spec) *Run {
	return &Run{
		ID:        id,
		Spec:      spec,
		CreatedAt: time.Now().UTC(),
		artifacts: make(map[string]string),
		metadata:  make(map[string]string),
	}
}

// SetArtifact records a named artifact location. Slots are never removed.
func (r *Run) SetArtifact(slot, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.artifacts == nil {
		r.artifacts = make(map[string]string)
	}
	r.artifacts[slot] = path
}

// Artifact returns the recorded location for a slot.
func (r *Run) Artifact(slot string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.artifacts[slot]
	return path, ok
}

// Artifacts returns a copy of the artifact map.
func (r *Run) Artifacts() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[string]string, len(r.artifacts))
	for k, v := range r.artifacts {
		cp[k] = v
	}
	return cp
}

// AppendLog appends a human-readable log line.
func (r *Run) AppendLog(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, line)
}

// Logs returns a copy of the ordered log lines.
func (r *Run) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]string, len(r.logs))
	copy(cp, r.logs)
	return cp
}

// SetProgress updates fractional progress. Values never move backward
// except when a retry restarts the pipeline.
func (r *Run) SetProgress(value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	r.Progress = value
}

// CurrentProgress returns the last recorded fractional progress.
func (r *Run) CurrentProgress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Progress
}

// SetState records the last observed FSM state name.
func (r *Run) SetState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = state
}

// CurrentState returns the last observed FSM state name.
func (r *Run) CurrentState() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}

// SetMeta stores a free-form metadata value.
func (r *Run) SetMeta(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metadata == nil {
		r.metadata = make(map[string]string)
	}
	r.metadata[key] = value
}

// Meta returns a free-form metadata value.
func (r *Run) Meta(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.metadata[key]
	return value, ok
}
