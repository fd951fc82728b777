package orchestrator

import (
	"context"
	"fmt"

	"reelflow/internal/fsm"
	"reelflow/internal/logging"
)

// Recover resumes in-flight runs after a process restart. Snapshots are
// the only source of truth: each live one is reloaded and the stage the
// run was in is resubmitted. Runs paused at a checkpoint stay paused;
// terminal runs are only re-registered for status queries.
func (o *Orchestrator) Recover(ctx context.Context) error {
	runIDs, err := o.repo.ListRunIDs(ctx)
	if err != nil {
		return fmt.Errorf("recover runs: %w", err)
	}

	resumed := 0
	for _, runID := range runIDs {
		machine, rec, err := o.lookup(ctx, runID)
		if err != nil {
			o.logger.Warn("skipping unrecoverable run",
				logging.String(logging.FieldRunID, runID),
				logging.Error(err),
			)
			continue
		}

		state := machine.Current()
		if state.IsTerminal() || state.IsReview() {
			continue
		}

		var resumeErr error
		switch state {
		case fsm.StateInit:
			if o.advance(ctx, machine, rec, fsm.StatePlanGeneration) {
				resumeErr = o.submitPlan(runID)
			}
		case fsm.StatePlanGeneration:
			resumeErr = o.submitPlan(runID)
		case fsm.StateAssetGeneration:
			resumeErr = o.submitAssets(ctx, rec)
		case fsm.StateRendering:
			resumeErr = o.submitRender(rec)
		case fsm.StateQA:
			resumeErr = o.submitQA(rec)
		}
		if resumeErr != nil {
			o.fail(ctx, machine, rec, fmt.Sprintf("resume after restart: %v", resumeErr))
			continue
		}
		resumed++
		o.logger.Info("run resumed after restart",
			logging.String(logging.FieldRunID, runID),
			logging.String(logging.FieldState, string(state)),
		)
	}

	if len(runIDs) > 0 {
		o.logger.Info("recovery scan finished",
			logging.Int("snapshots", len(runIDs)),
			logging.Int("resumed", resumed),
		)
	}
	return nil
}
