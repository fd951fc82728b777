package ipc

import (
	"encoding/json"

	"reelflow/internal/api"
	"reelflow/internal/progress"
)

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse reports daemon liveness.
type PingResponse struct {
	Running bool `json:"running"`
	PID     int  `json:"pid"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	Running    bool   `json:"running"`
	PID        int    `json:"pid"`
	StorePath  string `json:"store_path"`
	LockPath   string `json:"lock_path"`
	SocketPath string `json:"socket_path"`
	DebugBind  string `json:"debug_bind,omitempty"`
}

// StartRunRequest submits a new run.
type StartRunRequest struct {
	Spec api.StartRunRequest `json:"spec"`
}

// StartRunResponse returns the accepted run identifier.
type StartRunResponse struct {
	RunID string `json:"run_id"`
}

// RunStatusRequest fetches the state of one run.
type RunStatusRequest struct {
	RunID string `json:"run_id"`
}

// RunStatusResponse carries the run view.
type RunStatusResponse struct {
	Run api.RunStatus `json:"run"`
}

// ConfirmRequest resumes a run paused at a review checkpoint,
// optionally replacing the checkpoint artifact with edits first.
type ConfirmRequest struct {
	RunID string          `json:"run_id"`
	Edits json.RawMessage `json:"edits,omitempty"`
}

// ConfirmResponse reports the resume result.
type ConfirmResponse struct {
	Confirmed bool   `json:"confirmed"`
	Message   string `json:"message,omitempty"`
}

// RegenerateRequest reruns the stage behind the current checkpoint.
type RegenerateRequest struct {
	RunID string `json:"run_id"`
}

// RegenerateResponse reports the rerun result.
type RegenerateResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// CancelRequest aborts a run.
type CancelRequest struct {
	RunID string `json:"run_id"`
}

// CancelResponse reports the abort result.
type CancelResponse struct {
	Canceled bool `json:"canceled"`
}

// EventsRequest fetches progress events after a sequence number. When
// Wait is true the call blocks until an event arrives or WaitMillis
// elapses.
type EventsRequest struct {
	RunID      string `json:"run_id"`
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Wait       bool   `json:"wait"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns progress events and the next cursor.
type EventsResponse struct {
	Events []progress.Event `json:"events"`
	Next   uint64           `json:"next"`
}
