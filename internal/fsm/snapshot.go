package fsm

import (
	"encoding/json"
	"fmt"
)

const snapshotVersion = 1

// Snapshot is the versioned wire form of a machine. The schema is
// deliberately flat and string-typed so stored snapshots stay readable
// and forward-compatible across deployments.
type Snapshot struct {
	Version      int               `json:"version"`
	RunID        string            `json:"run_id"`
	CurrentState string            `json:"current_state"`
	History      []string          `json:"history"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Encode serializes the snapshot.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses and sanity-checks a stored snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if snap.RunID == "" {
		return Snapshot{}, fmt.Errorf("snapshot missing run_id")
	}
	if _, ok := ParseState(snap.CurrentState); !ok {
		return Snapshot{}, fmt.Errorf("snapshot has unknown state %q", snap.CurrentState)
	}
	return snap, nil
}
