package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reelflow/internal/fsm"
	"reelflow/internal/layout"
	"reelflow/internal/logging"
	"reelflow/internal/run"
	"reelflow/internal/validate"
)

// ErrNotInReview reports a confirm or regenerate request against a run
// that is not paused at a checkpoint. A second confirm of the same
// checkpoint lands here, which keeps the operation idempotent: the
// pipeline can never be advanced twice.
var ErrNotInReview = errors.New("orchestrator: run is not awaiting review")

// Status is the externally visible view of a run.
type Status struct {
	RunID         string            `json:"run_id"`
	State         string            `json:"state"`
	Progress      float64           `json:"progress"`
	Artifacts     map[string]string `json:"artifacts,omitempty"`
	Logs          []string          `json:"logs,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Status reports the current state of a run, reading the store first so
// transitions made by the other process role are visible.
func (o *Orchestrator) Status(ctx context.Context, runID string) (Status, error) {
	machine, rec, err := o.lookup(ctx, runID)
	if err != nil {
		return Status{}, err
	}
	state := machine.Current()
	rec.SetState(string(state))

	status := Status{
		RunID:     runID,
		State:     string(state),
		Progress:  rec.CurrentProgress(),
		Artifacts: rec.Artifacts(),
		Logs:      rec.Logs(),
		CreatedAt: rec.CreatedAt,
	}
	if reason, ok := machine.Meta(fsm.MetaFailureReason); ok {
		status.FailureReason = reason
	}
	return status, nil
}

// Confirm resumes a run paused at a review checkpoint, optionally
// applying operator edits first. The local snapshot cache is
// invalidated before the read so a confirm arriving at either process
// role sees the authoritative state.
func (o *Orchestrator) Confirm(ctx context.Context, runID string, edits json.RawMessage) error {
	o.repo.Invalidate(runID)
	machine, rec, err := o.lookup(ctx, runID)
	if err != nil {
		return err
	}
	state := machine.Current()
	if !state.IsReview() {
		return fmt.Errorf("%w: run %s is in %s", ErrNotInReview, runID, state)
	}

	if len(edits) > 0 {
		if err := o.applyEdits(runID, state, edits, rec); err != nil {
			return err
		}
	}

	o.logger.Info("review confirmed",
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldState, string(state)),
	)
	switch state {
	case fsm.StatePlanReview:
		o.startAssetGeneration(ctx, machine, rec)
	case fsm.StateAssetReview:
		if rec.Spec.Mode == run.ModeStory {
			o.advance(ctx, machine, rec, fsm.StateLayoutReview)
			return nil
		}
		o.startRendering(ctx, machine, rec)
	case fsm.StateLayoutReview:
		o.startRendering(ctx, machine, rec)
	}
	return nil
}

// applyEdits writes operator corrections into the checkpoint artifact.
// Plan edits replace the script and re-derive the layout synchronously,
// so the resumed pipeline only ever sees a consistent pair.
func (o *Orchestrator) applyEdits(runID string, state fsm.State, edits json.RawMessage, rec *run.Run) error {
	runDir := o.cfg.RunDir(runID)
	switch state {
	case fsm.StatePlanReview:
		if err := validate.Structural(edits); err != nil {
			return fmt.Errorf("rejected script edits: %w", err)
		}
		var script layout.Script
		if err := json.Unmarshal(edits, &script); err != nil {
			return fmt.Errorf("decode script edits: %w", err)
		}
		if verdict := validate.Script(&script, rec.Spec); verdict.Blocking() {
			return fmt.Errorf("rejected script edits: %s", issueSummary(verdict.Issues))
		}
		if err := script.Save(layout.ScriptPath(runDir)); err != nil {
			return err
		}
		derived := layout.Derive(runID, &script, rec.Spec)
		if err := derived.Save(layout.Path(runDir)); err != nil {
			return err
		}
		rec.AppendLog("plan edits applied")
		return nil

	case fsm.StateAssetReview, fsm.StateLayoutReview:
		var edited layout.Layout
		if err := json.Unmarshal(edits, &edited); err != nil {
			return fmt.Errorf("decode layout edits: %w", err)
		}
		if edited.ProjectID != runID {
			return fmt.Errorf("layout edits carry project %q, want %q", edited.ProjectID, runID)
		}
		if err := edited.Save(layout.Path(runDir)); err != nil {
			return err
		}
		rec.AppendLog("layout edits applied")
		return nil
	}
	return fmt.Errorf("%w: run %s is in %s", ErrNotInReview, runID, state)
}

// Regenerate steps a paused run backward one stage and reruns it. A
// failed run resumes through plan review so submitted corrections are
// not discarded, then regenerates from there in the same call.
func (o *Orchestrator) Regenerate(ctx context.Context, runID string) error {
	o.repo.Invalidate(runID)
	machine, rec, err := o.lookup(ctx, runID)
	if err != nil {
		return err
	}

	state := machine.Current()
	o.logger.Info("regenerate requested",
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldState, string(state)),
	)
	switch state {
	case fsm.StatePlanReview:
		if !o.advance(ctx, machine, rec, fsm.StatePlanGeneration) {
			return fmt.Errorf("run %s rejected regeneration from %s", runID, state)
		}
		return o.submitPlan(runID)

	case fsm.StateAssetReview, fsm.StateLayoutReview:
		o.startAssetGeneration(ctx, machine, rec)
		return nil

	case fsm.StateFailed:
		if !o.advance(ctx, machine, rec, fsm.StatePlanReview) {
			return fmt.Errorf("run %s rejected resume from Failed", runID)
		}
		if !o.advance(ctx, machine, rec, fsm.StatePlanGeneration) {
			return fmt.Errorf("run %s rejected regeneration after resume", runID)
		}
		return o.submitPlan(runID)
	}
	return fmt.Errorf("%w: run %s is in %s", ErrNotInReview, runID, state)
}

// Cancel fails the run and asks the substrate to stop outstanding
// tasks. Cancelling a terminal run is a no-op; task bodies that already
// started may finish, and their late results are discarded by the
// state guards.
func (o *Orchestrator) Cancel(ctx context.Context, runID string) error {
	o.repo.Invalidate(runID)
	machine, rec, err := o.lookup(ctx, runID)
	if err != nil {
		return err
	}
	if machine.IsTerminal() {
		return nil
	}
	o.fail(ctx, machine, rec, "canceled by operator")
	o.substrate.CancelRun(runID)
	return nil
}
