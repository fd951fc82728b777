package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"reelflow/internal/orchestrator"
	"reelflow/internal/progress"
)

// Service is the transport-neutral application surface shared by the
// IPC server and the debug HTTP endpoints.
type Service struct {
	orch *orchestrator.Orchestrator
	hub  *progress.Hub
}

// NewService wires the service facade.
func NewService(orch *orchestrator.Orchestrator, hub *progress.Hub) *Service {
	return &Service{orch: orch, hub: hub}
}

// StartRun validates and accepts a run request, returning its
// identifier once the pipeline is scheduled.
func (s *Service) StartRun(ctx context.Context, req StartRunRequest) (string, error) {
	runID, err := s.orch.Start(ctx, req.Spec())
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return runID, nil
}

// RunStatus reports the live state of a run.
func (s *Service) RunStatus(ctx context.Context, runID string) (RunStatus, error) {
	status, err := s.orch.Status(ctx, runID)
	if err != nil {
		return RunStatus{}, err
	}
	return FromStatus(status), nil
}

// Confirm resumes a paused run, applying any edits first.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) error {
	if req.RunID == "" {
		return errors.New("confirm requires a run id")
	}
	return s.orch.Confirm(ctx, req.RunID, req.Edits)
}

// Regenerate reruns the stage behind the current checkpoint.
func (s *Service) Regenerate(ctx context.Context, runID string) error {
	return s.orch.Regenerate(ctx, runID)
}

// Cancel fails a run and stops its outstanding work.
func (s *Service) Cancel(ctx context.Context, runID string) error {
	return s.orch.Cancel(ctx, runID)
}

// Events returns progress events for a run after the given sequence.
func (s *Service) Events(ctx context.Context, runID string, since uint64, limit int, wait bool) ([]progress.Event, uint64, error) {
	if s.hub == nil {
		return nil, since, nil
	}
	return s.hub.Fetch(ctx, runID, since, limit, wait)
}

// EditsFromJSON validates that raw edit bytes are a JSON document
// before they travel to the orchestrator.
func EditsFromJSON(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("edits must be a JSON document")
	}
	return json.RawMessage(raw), nil
}
