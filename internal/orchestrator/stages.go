package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"reelflow/internal/assets"
	"reelflow/internal/fsm"
	"reelflow/internal/layout"
	"reelflow/internal/logging"
	"reelflow/internal/metrics"
	"reelflow/internal/progress"
	"reelflow/internal/qa"
	"reelflow/internal/render"
	"reelflow/internal/run"
	"reelflow/internal/tasks"
)

// startAssetGeneration transitions into asset generation and fans out
// the three producers with a barrier continuation.
func (o *Orchestrator) startAssetGeneration(ctx context.Context, machine *fsm.Machine, rec *run.Run) {
	if !o.advance(ctx, machine, rec, fsm.StateAssetGeneration) {
		return
	}
	if err := o.submitAssets(ctx, rec); err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("schedule asset producers: %v", err))
	}
}

// submitAssets schedules the producer group against the current layout.
// Producers receive a shared read-only layout snapshot; only the barrier
// merger writes the layout back.
func (o *Orchestrator) submitAssets(ctx context.Context, rec *run.Run) error {
	runDir := o.cfg.RunDir(rec.ID)
	snapshot, err := layout.Load(layout.Path(runDir))
	if err != nil {
		return err
	}
	spec := rec.Spec
	runID := rec.ID

	group := []tasks.Task{
		{Name: assets.ProducerVisual, RunID: runID, Fn: func(ctx context.Context) (any, error) {
			return o.producers.ProduceVisuals(ctx, runDir, snapshot, spec)
		}},
		{Name: assets.ProducerNarration, RunID: runID, Fn: func(ctx context.Context) (any, error) {
			return o.producers.ProduceNarration(ctx, runDir, snapshot, spec)
		}},
		{Name: assets.ProducerMusic, RunID: runID, Fn: func(ctx context.Context) (any, error) {
			return o.producers.ProduceMusic(ctx, runDir, snapshot, spec)
		}},
	}
	handle, err := o.substrate.SubmitGroup(group)
	if err != nil {
		return err
	}
	return o.substrate.SubmitBarrier(handle, func(ctx context.Context, results []tasks.Result) {
		o.OnAssetsComplete(ctx, runID, collectResults(runID, results, o))
	})
}

// collectResults converts substrate results into producer results. A
// failed member contributes an empty update list; the merger and QA
// handle the gap.
func collectResults(runID string, results []tasks.Result, o *Orchestrator) []assets.Result {
	converted := make([]assets.Result, 0, len(results))
	for _, result := range results {
		if result.Err != nil {
			o.logger.Warn("asset producer failed",
				logging.String(logging.FieldRunID, runID),
				logging.String(logging.FieldProducer, result.Name),
				logging.Error(result.Err),
			)
			converted = append(converted, assets.Result{Producer: result.Name})
			continue
		}
		if value, ok := result.Value.(assets.Result); ok {
			converted = append(converted, value)
			continue
		}
		converted = append(converted, assets.Result{Producer: result.Name})
	}
	return converted
}

// OnAssetsComplete is the barrier continuation: it merges producer
// updates into the layout and advances past asset generation. Barriers
// firing after the run moved on are discarded.
func (o *Orchestrator) OnAssetsComplete(ctx context.Context, runID string, results []assets.Result) {
	machine, rec, err := o.lookup(ctx, runID)
	if err != nil {
		return
	}
	if machine.Current() != fsm.StateAssetGeneration {
		o.logger.Info("discarding late asset results",
			logging.String(logging.FieldRunID, runID),
			logging.String(logging.FieldState, string(machine.Current())),
		)
		return
	}

	runDir := o.cfg.RunDir(runID)
	merged, err := layout.Load(layout.Path(runDir))
	if err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("load layout for merge: %v", err))
		return
	}
	empty, err := o.merger.Merge(runDir, merged, results)
	if err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("merge assets: %v", err))
		return
	}
	if len(empty) > 0 {
		line := fmt.Sprintf("producers contributed nothing: %s", strings.Join(empty, ", "))
		rec.AppendLog(line)
		o.publishLog(rec, line)
	}
	rec.SetArtifact(run.ArtifactLayout, layout.Path(runDir))
	o.publishArtifacts(rec)

	switch {
	case rec.Spec.ReviewMode:
		o.advance(ctx, machine, rec, fsm.StateAssetReview)
	case rec.Spec.Mode == run.ModeStory:
		// Story runs always pause for layout review; automated runs in
		// the other modes go straight to rendering.
		o.advance(ctx, machine, rec, fsm.StateLayoutReview)
	default:
		o.startRendering(ctx, machine, rec)
	}
}

// startRendering transitions into rendering and schedules the render
// task.
func (o *Orchestrator) startRendering(ctx context.Context, machine *fsm.Machine, rec *run.Run) {
	if !o.advance(ctx, machine, rec, fsm.StateRendering) {
		return
	}
	if err := o.submitRender(rec); err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("schedule render: %v", err))
	}
}

func (o *Orchestrator) submitRender(rec *run.Run) error {
	runID := rec.ID
	return o.substrate.Submit(tasks.Task{
		Name:  taskRender,
		RunID: runID,
		Fn: func(ctx context.Context) (any, error) {
			o.runRender(ctx, runID)
			return nil, nil
		},
	})
}

func (o *Orchestrator) runRender(ctx context.Context, runID string) {
	machine, rec, err := o.lookup(ctx, runID)
	if err != nil {
		return
	}
	runDir := o.cfg.RunDir(runID)
	merged, err := layout.Load(layout.Path(runDir))
	if err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("load layout for render: %v", err))
		return
	}

	// Per-scene completion maps onto the Rendering..QA progress band.
	base := stageProgress[fsm.StateRendering]
	span := stageProgress[fsm.StateQA] - base
	videoPath, err := o.renderer.Render(ctx, runDir, merged, func(fraction float64) {
		value := base + span*fraction
		rec.SetProgress(value)
		o.publish(progress.Event{RunID: runID, Progress: progress.Fraction(value)})
	})
	o.OnRenderComplete(ctx, runID, videoPath, err)
}

// OnRenderComplete records the video and hands the run to QA.
func (o *Orchestrator) OnRenderComplete(ctx context.Context, runID, videoPath string, renderErr error) {
	machine, rec, err := o.lookup(ctx, runID)
	if err != nil {
		return
	}
	if machine.Current() != fsm.StateRendering {
		return
	}
	if renderErr != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("render failed: %v", renderErr))
		return
	}
	rec.SetArtifact(run.ArtifactVideo, videoPath)
	o.publishArtifacts(rec)

	if !o.advance(ctx, machine, rec, fsm.StateQA) {
		return
	}
	if err := o.submitQA(rec); err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("schedule qa: %v", err))
	}
}

func (o *Orchestrator) submitQA(rec *run.Run) error {
	runID := rec.ID
	return o.substrate.Submit(tasks.Task{
		Name:  taskQA,
		RunID: runID,
		Fn: func(ctx context.Context) (any, error) {
			o.runQA(ctx, runID)
			return nil, nil
		},
	})
}

func (o *Orchestrator) runQA(ctx context.Context, runID string) {
	machine, rec, err := o.lookup(ctx, runID)
	if err != nil {
		return
	}
	runDir := o.cfg.RunDir(runID)
	merged, loadErr := layout.Load(layout.Path(runDir))
	if loadErr != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("load layout for qa: %v", loadErr))
		return
	}
	o.OnQAComplete(ctx, runID, qa.Check(render.VideoPath(runDir), merged))
}

// OnQAComplete finishes a passing run, or sends a failing one back
// through plan generation while budget remains.
func (o *Orchestrator) OnQAComplete(ctx context.Context, runID string, verdict qa.Verdict) {
	machine, rec, err := o.lookup(ctx, runID)
	if err != nil {
		return
	}
	if machine.Current() != fsm.StateQA {
		return
	}

	if verdict.Passed {
		o.advance(ctx, machine, rec, fsm.StateEnd)
		o.logger.Info("run completed", logging.String(logging.FieldRunID, runID))
		return
	}

	summary := issueSummary(verdict.Issues)
	attempt := machine.IncrementCounter(ctx, counterQARetries)
	if attempt > o.cfg.Orchestrator.MaxQARetries {
		o.fail(ctx, machine, rec, fmt.Sprintf("qa failed after %d attempts: %s", attempt, summary))
		return
	}
	metrics.QARetries.Inc()
	rec.AppendLog(fmt.Sprintf("qa attempt %d failed: %s", attempt, summary))
	o.publishLog(rec, fmt.Sprintf("qa failed, restarting pipeline (attempt %d): %s", attempt, summary))
	o.clearArtifacts(runID)

	if !o.advance(ctx, machine, rec, fsm.StatePlanGeneration) {
		return
	}
	if err := o.submitPlan(runID); err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("schedule plan after qa: %v", err))
	}
}
