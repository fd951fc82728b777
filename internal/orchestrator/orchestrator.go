package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelflow/internal/assets"
	"reelflow/internal/config"
	"reelflow/internal/fsm"
	"reelflow/internal/layout"
	"reelflow/internal/logging"
	"reelflow/internal/metrics"
	"reelflow/internal/notifications"
	"reelflow/internal/progress"
	"reelflow/internal/providers"
	"reelflow/internal/render"
	"reelflow/internal/run"
	"reelflow/internal/tasks"
	"reelflow/internal/validate"
)

// ErrRunNotFound reports an unknown or expired run identifier.
var ErrRunNotFound = errors.New("orchestrator: run not found")

// Machine metadata keys owned by the orchestrator.
const (
	// MetaSpec carries the run spec in the snapshot so either process
	// role can rebuild the run record after a restart.
	MetaSpec = "spec"

	counterPlanRetries = "plan_retries"
	counterQARetries   = "qa_retries"
)

// Task names used on the substrate.
const (
	taskPlan   = "plan"
	taskRender = "render"
	taskQA     = "qa"
)

// stageProgress maps each lifecycle state to the fraction reported when
// the run enters it. Failed has no entry: the last fraction stands.
var stageProgress = map[fsm.State]float64{
	fsm.StateInit:            0,
	fsm.StatePlanGeneration:  0.1,
	fsm.StatePlanReview:      0.3,
	fsm.StateAssetGeneration: 0.4,
	fsm.StateAssetReview:     0.6,
	fsm.StateLayoutReview:    0.65,
	fsm.StateRendering:       0.7,
	fsm.StateQA:              0.9,
	fsm.StateEnd:             1,
}

// RetrySignal is the explicit decision to regenerate a plan after a
// validation failure. A nil signal means the retry budget is spent.
type RetrySignal struct {
	Attempt int
	Issues  []string
}

// Orchestrator drives runs through the lifecycle: it owns every state
// transition and every task submission. Stage bodies report back
// through the On*Complete callbacks and never touch the machine
// directly.
type Orchestrator struct {
	cfg       *config.Config
	repo      *fsm.Repository
	substrate tasks.Substrate
	clients   providers.Set
	producers *assets.ProducerSet
	merger    *assets.Merger
	renderer  render.Renderer
	hub       *progress.Hub
	notifier  notifications.Service
	logger    *slog.Logger

	mu   sync.Mutex
	runs map[string]*run.Run
}

// New wires the orchestrator. All collaborators are required except
// hub, which may be nil to disable progress broadcasting.
func New(cfg *config.Config, repo *fsm.Repository, substrate tasks.Substrate, clients providers.Set, renderer render.Renderer, hub *progress.Hub, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		repo:      repo,
		substrate: substrate,
		clients:   clients,
		producers: assets.NewProducerSet(clients, logger),
		merger:    assets.NewMerger(logger),
		renderer:  renderer,
		hub:       hub,
		notifier:  notifications.NewService(cfg),
		logger:    logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// Start accepts a run request: it validates the spec, creates the
// machine, moves it into plan generation, and schedules the plan task.
// It returns as soon as the task is queued.
func (o *Orchestrator) Start(ctx context.Context, spec run.Spec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("encode run spec: %w", err)
	}

	runID := uuid.NewString()
	machine, err := o.repo.Create(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	rec := run.New(runID, spec)
	rec.SetState(string(fsm.StateInit))
	o.register(rec)

	if !o.advance(ctx, machine, rec, fsm.StatePlanGeneration, fsm.WithMetadata(map[string]string{MetaSpec: string(specJSON)})) {
		return "", fmt.Errorf("run %s rejected initial transition", runID)
	}
	metrics.RunsStarted.Inc()

	if err := o.submitPlan(runID); err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("schedule plan: %v", err))
		return "", err
	}
	o.logger.Info("run started",
		logging.String(logging.FieldRunID, runID),
		logging.String("mode", string(spec.Mode)),
	)
	o.notify(runID, func(ctx context.Context) error {
		return o.notifier.NotifyRunStarted(ctx, runID, string(spec.Mode))
	})
	return runID, nil
}

func (o *Orchestrator) submitPlan(runID string) error {
	return o.substrate.Submit(tasks.Task{
		Name:  taskPlan,
		RunID: runID,
		Fn: func(ctx context.Context) (any, error) {
			o.runPlan(ctx, runID)
			return nil, nil
		},
	})
}

// runPlan executes the plan stage body. Provider failures fall back to
// the rule-based script, which validation then rejects, so a dead
// provider consumes retry budget instead of wedging the run.
func (o *Orchestrator) runPlan(ctx context.Context, runID string) {
	_, rec, err := o.lookup(ctx, runID)
	if err != nil {
		o.logger.Warn("plan task for unknown run", logging.String(logging.FieldRunID, runID), logging.Error(err))
		return
	}
	script, genErr := o.clients.Script.GenerateScript(ctx, rec.Spec)
	if genErr != nil {
		o.logger.Warn("script provider failed; using fallback plan",
			logging.String(logging.FieldRunID, runID),
			logging.Error(genErr),
		)
		rec.AppendLog(fmt.Sprintf("script provider failed: %v", genErr))
		script = providers.FallbackScript(rec.Spec)
	}
	o.OnPlanComplete(ctx, runID, script)
}

// OnPlanComplete validates the generated script and either advances the
// run or issues a retry. Results arriving after the run left plan
// generation are discarded.
func (o *Orchestrator) OnPlanComplete(ctx context.Context, runID string, script *layout.Script) {
	machine, rec, err := o.lookup(ctx, runID)
	if err != nil {
		return
	}
	if machine.Current() != fsm.StatePlanGeneration {
		o.logger.Info("discarding late plan result",
			logging.String(logging.FieldRunID, runID),
			logging.String(logging.FieldState, string(machine.Current())),
		)
		return
	}

	verdict := o.checkScript(script, rec.Spec)
	if verdict.Blocking() {
		signal := o.planRetrySignal(ctx, machine, verdict)
		if signal == nil {
			o.fail(ctx, machine, rec, fmt.Sprintf("plan validation failed after %d attempts: %s",
				machine.Counter(counterPlanRetries)+1, issueSummary(verdict.Issues)))
			return
		}
		o.retryPlan(ctx, machine, rec, signal)
		return
	}

	runDir := o.cfg.RunDir(runID)
	scriptPath := layout.ScriptPath(runDir)
	if err := script.Save(scriptPath); err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("save script: %v", err))
		return
	}
	rec.SetArtifact(run.ArtifactScript, scriptPath)

	derived := layout.Derive(runID, script, rec.Spec)
	layoutPath := layout.Path(runDir)
	if err := derived.Save(layoutPath); err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("save layout: %v", err))
		return
	}
	rec.SetArtifact(run.ArtifactLayout, layoutPath)
	o.publishArtifacts(rec)

	if rec.Spec.ReviewMode {
		o.advance(ctx, machine, rec, fsm.StatePlanReview)
		return
	}
	o.startAssetGeneration(ctx, machine, rec)
}

// checkScript runs the structural gate first, then the semantic checks.
func (o *Orchestrator) checkScript(script *layout.Script, spec run.Spec) validate.Verdict {
	data, err := json.Marshal(script)
	if err != nil {
		return validate.Verdict{Issues: []string{fmt.Sprintf("encode script: %v", err)}}
	}
	if err := validate.Structural(data); err != nil {
		return validate.Verdict{Issues: []string{err.Error()}}
	}
	return validate.Script(script, spec)
}

// planRetrySignal consumes one unit of retry budget. A nil return means
// the budget is exhausted and the run must fail.
func (o *Orchestrator) planRetrySignal(ctx context.Context, machine *fsm.Machine, verdict validate.Verdict) *RetrySignal {
	attempt := machine.IncrementCounter(ctx, counterPlanRetries)
	if attempt > o.cfg.Orchestrator.MaxPlanRetries {
		return nil
	}
	return &RetrySignal{Attempt: attempt, Issues: verdict.Issues}
}

// retryPlan discards partial plan artifacts, waits the configured
// delay, and resubmits the plan task. The run stays in plan generation
// the whole time.
func (o *Orchestrator) retryPlan(ctx context.Context, machine *fsm.Machine, rec *run.Run, signal *RetrySignal) {
	metrics.PlanRetries.Inc()
	summary := issueSummary(signal.Issues)
	o.logger.Info("plan rejected; retrying",
		logging.String(logging.FieldRunID, rec.ID),
		logging.Int(logging.FieldAttempt, signal.Attempt),
		logging.String("issues", summary),
	)
	rec.AppendLog(fmt.Sprintf("plan attempt %d rejected: %s", signal.Attempt, summary))
	o.publishLog(rec, fmt.Sprintf("regenerating plan (attempt %d): %s", signal.Attempt, summary))
	o.clearArtifacts(rec.ID)

	select {
	case <-time.After(o.retryDelay()):
	case <-ctx.Done():
		return
	}
	if err := o.submitPlan(rec.ID); err != nil {
		o.fail(ctx, machine, rec, fmt.Sprintf("schedule plan retry: %v", err))
	}
}

func (o *Orchestrator) retryDelay() time.Duration {
	secs := o.cfg.Orchestrator.RetryDelaySecs
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// clearArtifacts removes on-disk outputs from a discarded attempt.
func (o *Orchestrator) clearArtifacts(runID string) {
	runDir := o.cfg.RunDir(runID)
	for _, path := range []string{layout.ScriptPath(runDir), layout.Path(runDir), render.VideoPath(runDir)} {
		_ = os.Remove(path)
	}
}

// lookup resolves the machine (store-first) and the run record,
// rebuilding the record from snapshot metadata when this process has
// never seen the run.
func (o *Orchestrator) lookup(ctx context.Context, runID string) (*fsm.Machine, *run.Run, error) {
	machine, err := o.repo.Load(ctx, runID)
	if err != nil {
		if errors.Is(err, fsm.ErrNotFound) {
			return nil, nil, ErrRunNotFound
		}
		return nil, nil, err
	}
	return machine, o.recordFor(machine), nil
}

func (o *Orchestrator) register(rec *run.Run) {
	o.mu.Lock()
	if o.runs == nil {
		o.runs = make(map[string]*run.Run)
	}
	o.runs[rec.ID] = rec
	o.mu.Unlock()
}

func (o *Orchestrator) record(runID string) *run.Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs[runID]
}

func (o *Orchestrator) recordFor(machine *fsm.Machine) *run.Run {
	if rec := o.record(machine.RunID()); rec != nil {
		return rec
	}
	var spec run.Spec
	if raw, ok := machine.Meta(MetaSpec); ok {
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			o.logger.Warn("snapshot spec unreadable",
				logging.String(logging.FieldRunID, machine.RunID()),
				logging.Error(err),
			)
		}
	}
	rec := run.New(machine.RunID(), spec)
	rec.SetState(string(machine.Current()))
	if fraction, ok := stageProgress[machine.Current()]; ok {
		rec.SetProgress(fraction)
	}
	o.register(rec)
	return rec
}

// advance performs one guarded transition and mirrors it into the run
// record, metrics, and the progress stream.
func (o *Orchestrator) advance(ctx context.Context, machine *fsm.Machine, rec *run.Run, target fsm.State, opts ...fsm.TransitionOption) bool {
	if !machine.Transition(ctx, target, opts...) {
		metrics.TransitionsRejected.Inc()
		return false
	}
	o.noteState(rec, target)
	return true
}

// fail moves the run to Failed and broadcasts the terminal event.
func (o *Orchestrator) fail(ctx context.Context, machine *fsm.Machine, rec *run.Run, reason string) {
	if machine.Fail(ctx, reason) && machine.Current() == fsm.StateFailed {
		rec.AppendLog("failed: " + reason)
		o.noteState(rec, fsm.StateFailed)
		o.notify(rec.ID, func(ctx context.Context) error {
			return o.notifier.NotifyRunFailed(ctx, rec.ID, reason)
		})
	}
}

func (o *Orchestrator) noteState(rec *run.Run, state fsm.State) {
	rec.SetState(string(state))
	evt := progress.Event{RunID: rec.ID, State: string(state)}
	if fraction, ok := stageProgress[state]; ok {
		rec.SetProgress(fraction)
		evt.Progress = progress.Fraction(fraction)
	}
	if state.IsTerminal() {
		evt.Artifacts = rec.Artifacts()
	}
	o.publish(evt)

	metrics.TransitionsTaken.WithLabelValues(string(state)).Inc()
	switch state {
	case fsm.StateEnd:
		metrics.RunsCompleted.Inc()
		video, _ := rec.Artifact(run.ArtifactVideo)
		o.notify(rec.ID, func(ctx context.Context) error {
			return o.notifier.NotifyRunCompleted(ctx, rec.ID, video)
		})
	case fsm.StateFailed:
		metrics.RunsFailed.Inc()
	case fsm.StatePlanReview, fsm.StateAssetReview, fsm.StateLayoutReview:
		o.notify(rec.ID, func(ctx context.Context) error {
			return o.notifier.NotifyReviewPending(ctx, rec.ID, string(state))
		})
	}
}

// notify delivers a notification off the transition path so a slow or
// unreachable ntfy endpoint cannot stall the pipeline.
func (o *Orchestrator) notify(runID string, send func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			o.logger.Warn("notification failed",
				logging.String(logging.FieldRunID, runID),
				logging.Error(err),
			)
		}
	}()
}

func (o *Orchestrator) publish(evt progress.Event) {
	if o.hub != nil {
		o.hub.Publish(evt)
	}
}

func (o *Orchestrator) publishLog(rec *run.Run, line string) {
	o.publish(progress.Event{RunID: rec.ID, Log: line})
}

func (o *Orchestrator) publishArtifacts(rec *run.Run) {
	o.publish(progress.Event{RunID: rec.ID, Artifacts: rec.Artifacts()})
}

func issueSummary(issues []string) string {
	if len(issues) == 0 {
		return "no issues reported"
	}
	summary := issues[0]
	if len(issues) > 1 {
		summary = fmt.Sprintf("%s (+%d more)", summary, len(issues)-1)
	}
	return summary
}
