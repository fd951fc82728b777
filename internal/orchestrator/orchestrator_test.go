package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelflow/internal/config"
	"reelflow/internal/fsm"
	"reelflow/internal/layout"
	"reelflow/internal/orchestrator"
	"reelflow/internal/progress"
	"reelflow/internal/providers"
	"reelflow/internal/render"
	"reelflow/internal/run"
	"reelflow/internal/statestore"
	"reelflow/internal/tasks"
	"reelflow/internal/testsupport"
)

type env struct {
	cfg  *config.Config
	repo *fsm.Repository
	hub  *progress.Hub
	orch *orchestrator.Orchestrator
}

func newEnv(t *testing.T, script providers.ScriptClient, renderer render.Renderer, opts ...testsupport.ConfigOption) *env {
	t.Helper()
	return newEnvWithStore(t, statestore.NewMemoryStore(), script, renderer, opts...)
}

func newEnvWithStore(t *testing.T, store statestore.Store, script providers.ScriptClient, renderer render.Renderer, opts ...testsupport.ConfigOption) *env {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	repo := fsm.NewRepository(store, time.Hour, nil)
	hub := progress.NewHub(256)
	substrate := tasks.NewLocalSubstrate(4, nil)
	t.Cleanup(substrate.Close)

	if script == nil {
		script = &providers.OfflineScriptClient{}
	}
	if renderer == nil {
		renderer = &render.OfflineRenderer{}
	}
	clients := providers.Set{
		Script: script,
		Image:  &providers.OfflineImageClient{},
		Speech: &providers.OfflineSpeechClient{DefaultVoice: "voice-test"},
		Music:  &providers.OfflineMusicClient{},
	}
	orch := orchestrator.New(cfg, repo, substrate, clients, renderer, hub, nil)
	return &env{cfg: cfg, repo: repo, hub: hub, orch: orch}
}

func baseSpec(mode run.Mode, review bool) run.Spec {
	return run.Spec{
		Mode:          mode,
		Prompt:        "a lighthouse keeper and her cat",
		NumCharacters: 1,
		NumCuts:       3,
		ArtStyle:      "pastel watercolor",
		MusicGenre:    "ambient",
		ReviewMode:    review,
	}
}

// waitForState polls until the run reaches want. Reaching Failed while
// waiting for anything else aborts the test with the failure reason.
func waitForState(t *testing.T, orch *orchestrator.Orchestrator, runID string, want fsm.State) orchestrator.Status {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	var last orchestrator.Status
	for time.Now().Before(deadline) {
		status, err := orch.Status(context.Background(), runID)
		if err == nil {
			last = status
			if status.State == string(want) {
				return status
			}
			if want != fsm.StateFailed && status.State == string(fsm.StateFailed) {
				t.Fatalf("run %s failed while waiting for %s: %s", runID, want, status.FailureReason)
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s never reached %s; last state %s (failure: %q)", runID, want, last.State, last.FailureReason)
	return orchestrator.Status{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// countingScriptClient counts invocations before delegating.
type countingScriptClient struct {
	calls atomic.Int32
	inner providers.ScriptClient
}

func (c *countingScriptClient) GenerateScript(ctx context.Context, spec run.Spec) (*layout.Script, error) {
	c.calls.Add(1)
	return c.inner.GenerateScript(ctx, spec)
}

// flakyScriptClient fails the first failUntil calls, then recovers.
type flakyScriptClient struct {
	calls     atomic.Int32
	failUntil int32
	inner     providers.ScriptClient
}

func (c *flakyScriptClient) GenerateScript(ctx context.Context, spec run.Spec) (*layout.Script, error) {
	if c.calls.Add(1) <= c.failUntil {
		return nil, errors.New("script provider down")
	}
	return c.inner.GenerateScript(ctx, spec)
}

// blockingScriptClient parks the plan stage until released.
type blockingScriptClient struct {
	startedOnce sync.Once
	started     chan struct{}
	release     chan struct{}
	inner       providers.ScriptClient
}

func newBlockingScriptClient() *blockingScriptClient {
	return &blockingScriptClient{
		started: make(chan struct{}),
		release: make(chan struct{}),
		inner:   &providers.OfflineScriptClient{},
	}
}

func (c *blockingScriptClient) GenerateScript(ctx context.Context, spec run.Spec) (*layout.Script, error) {
	c.startedOnce.Do(func() { close(c.started) })
	select {
	case <-c.release:
		return c.inner.GenerateScript(ctx, spec)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// emptyVideoRenderer produces an output the quality gate must reject.
type emptyVideoRenderer struct{}

func (emptyVideoRenderer) Render(_ context.Context, runDir string, _ *layout.Layout, onProgress func(float64)) (string, error) {
	path := render.VideoPath(runDir)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(1)
	}
	return path, nil
}

func TestAutomatedRunReachesEnd(t *testing.T) {
	e := newEnv(t, nil, nil)

	runID, err := e.orch.Start(context.Background(), baseSpec(run.ModeGeneral, false))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := waitForState(t, e.orch, runID, fsm.StateEnd)
	if status.Progress != 1 {
		t.Errorf("progress = %v, want 1", status.Progress)
	}
	for _, slot := range []string{run.ArtifactScript, run.ArtifactLayout, run.ArtifactVideo} {
		path, ok := status.Artifacts[slot]
		if !ok {
			t.Fatalf("missing %s artifact", slot)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s artifact: %v", slot, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s artifact is empty", slot)
		}
	}

	merged, err := layout.Load(layout.Path(e.cfg.RunDir(runID)))
	if err != nil {
		t.Fatalf("load merged layout: %v", err)
	}
	if merged.GlobalBGM == nil || merged.GlobalBGM.AudioURL == "" {
		t.Fatal("merged layout missing background music")
	}

	tail := e.hub.Tail(runID, 1)
	if len(tail) != 1 || tail[0].State != string(fsm.StateEnd) {
		t.Fatalf("terminal event = %+v", tail)
	}
	if len(tail[0].Artifacts) == 0 {
		t.Fatal("terminal event carries no artifacts")
	}
}

func TestStoryRunPausesAtLayoutReview(t *testing.T) {
	e := newEnv(t, nil, nil)

	runID, err := e.orch.Start(context.Background(), baseSpec(run.ModeStory, false))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StateLayoutReview)

	if err := e.orch.Confirm(context.Background(), runID, nil); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StateEnd)
}

func TestReviewModeWalksEveryCheckpoint(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()

	runID, err := e.orch.Start(ctx, baseSpec(run.ModeGeneral, true))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := waitForState(t, e.orch, runID, fsm.StatePlanReview)
	if _, ok := status.Artifacts[run.ArtifactScript]; !ok {
		t.Fatal("plan review reached without a script artifact")
	}
	if _, ok := status.Artifacts[run.ArtifactLayout]; !ok {
		t.Fatal("plan review reached without a layout artifact")
	}

	if err := e.orch.Confirm(ctx, runID, nil); err != nil {
		t.Fatalf("Confirm at plan review: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StateAssetReview)

	if err := e.orch.Confirm(ctx, runID, nil); err != nil {
		t.Fatalf("Confirm at asset review: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StateEnd)

	// A confirm after the run finished must not advance anything.
	if err := e.orch.Confirm(ctx, runID, nil); !errors.Is(err, orchestrator.ErrNotInReview) {
		t.Fatalf("Confirm on finished run = %v, want ErrNotInReview", err)
	}
}

func TestReviewModeStoryHitsThreeCheckpoints(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()

	runID, err := e.orch.Start(ctx, baseSpec(run.ModeStory, true))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, checkpoint := range []fsm.State{fsm.StatePlanReview, fsm.StateAssetReview, fsm.StateLayoutReview} {
		waitForState(t, e.orch, runID, checkpoint)
		if err := e.orch.Confirm(ctx, runID, nil); err != nil {
			t.Fatalf("Confirm at %s: %v", checkpoint, err)
		}
	}
	waitForState(t, e.orch, runID, fsm.StateEnd)
}

func TestPlanRetryBudgetExhaustionFailsRun(t *testing.T) {
	script := &flakyScriptClient{failUntil: 1 << 30}
	e := newEnv(t, script, nil, testsupport.WithRetryBudget(1, 2))

	runID, err := e.orch.Start(context.Background(), baseSpec(run.ModeGeneral, false))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := waitForState(t, e.orch, runID, fsm.StateFailed)
	if got := script.calls.Load(); got != 2 {
		t.Errorf("script generations = %d, want initial + 1 retry", got)
	}
	if status.FailureReason == "" {
		t.Fatal("failed run has no failure reason")
	}
	if want := "plan validation failed after 2 attempts"; !contains(status.FailureReason, want) {
		t.Fatalf("failure reason = %q, want mention of %q", status.FailureReason, want)
	}
}

func TestQARetryBudgetExhaustionFailsRun(t *testing.T) {
	script := &countingScriptClient{inner: &providers.OfflineScriptClient{}}
	e := newEnv(t, script, emptyVideoRenderer{}, testsupport.WithRetryBudget(2, 1))

	runID, err := e.orch.Start(context.Background(), baseSpec(run.ModeGeneral, false))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := waitForState(t, e.orch, runID, fsm.StateFailed)
	if want := "qa failed after 2 attempts"; !contains(status.FailureReason, want) {
		t.Fatalf("failure reason = %q, want mention of %q", status.FailureReason, want)
	}
	// One full pipeline pass per QA attempt: the initial plan plus one
	// retry after the first failed gate.
	if got := script.calls.Load(); got != 2 {
		t.Errorf("script generations = %d, want 2", got)
	}
}

func TestConfirmAppliesPlanEdits(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()

	spec := baseSpec(run.ModeGeneral, true)
	runID, err := e.orch.Start(ctx, spec)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StatePlanReview)

	edited, err := (&providers.OfflineScriptClient{}).GenerateScript(ctx, spec)
	if err != nil {
		t.Fatalf("build edits: %v", err)
	}
	edited.Title = "The Keeper, Revised"
	edits, err := json.Marshal(edited)
	if err != nil {
		t.Fatalf("encode edits: %v", err)
	}
	if err := e.orch.Confirm(ctx, runID, edits); err != nil {
		t.Fatalf("Confirm with edits: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StateAssetReview)
	if err := e.orch.Confirm(ctx, runID, nil); err != nil {
		t.Fatalf("Confirm at asset review: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StateEnd)

	merged, err := layout.Load(layout.Path(e.cfg.RunDir(runID)))
	if err != nil {
		t.Fatalf("load layout: %v", err)
	}
	if merged.Title != "The Keeper, Revised" {
		t.Fatalf("layout title = %q", merged.Title)
	}
}

func TestConfirmRejectsFillerEdits(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()

	spec := baseSpec(run.ModeGeneral, true)
	runID, err := e.orch.Start(ctx, spec)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StatePlanReview)

	edits, err := json.Marshal(providers.FallbackScript(spec))
	if err != nil {
		t.Fatalf("encode edits: %v", err)
	}
	if err := e.orch.Confirm(ctx, runID, edits); err == nil {
		t.Fatal("filler edits accepted")
	}

	// The rejection must leave the checkpoint intact.
	status, err := e.orch.Status(ctx, runID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != string(fsm.StatePlanReview) {
		t.Fatalf("state after rejected edits = %s", status.State)
	}
}

func TestRegenerateAtPlanReviewRerunsPlanning(t *testing.T) {
	script := &countingScriptClient{inner: &providers.OfflineScriptClient{}}
	e := newEnv(t, script, nil)
	ctx := context.Background()

	runID, err := e.orch.Start(ctx, baseSpec(run.ModeGeneral, true))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StatePlanReview)

	if err := e.orch.Regenerate(ctx, runID); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	waitFor(t, "second plan generation", func() bool { return script.calls.Load() == 2 })
	waitForState(t, e.orch, runID, fsm.StatePlanReview)
}

func TestRegenerateResumesFailedRun(t *testing.T) {
	script := &flakyScriptClient{failUntil: 2, inner: &providers.OfflineScriptClient{}}
	e := newEnv(t, script, nil, testsupport.WithRetryBudget(1, 2))
	ctx := context.Background()

	runID, err := e.orch.Start(ctx, baseSpec(run.ModeGeneral, false))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StateFailed)

	// The provider has recovered; resuming replays planning and the run
	// completes without operator edits.
	if err := e.orch.Regenerate(ctx, runID); err != nil {
		t.Fatalf("Regenerate from Failed: %v", err)
	}
	waitForState(t, e.orch, runID, fsm.StateEnd)
}

func TestCancelFailsRunAndDiscardsLateResults(t *testing.T) {
	script := newBlockingScriptClient()
	e := newEnv(t, script, nil)
	ctx := context.Background()

	runID, err := e.orch.Start(ctx, baseSpec(run.ModeGeneral, false))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-script.started:
	case <-time.After(5 * time.Second):
		t.Fatal("plan stage never started")
	}

	if err := e.orch.Cancel(ctx, runID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	status := waitForState(t, e.orch, runID, fsm.StateFailed)
	if !contains(status.FailureReason, "canceled by operator") {
		t.Fatalf("failure reason = %q", status.FailureReason)
	}

	// Release the parked stage; its late result must be discarded.
	close(script.release)
	time.Sleep(100 * time.Millisecond)
	status, err = e.orch.Status(ctx, runID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != string(fsm.StateFailed) {
		t.Fatalf("late plan result advanced the run to %s", status.State)
	}

	// Cancelling a terminal run is a no-op.
	if err := e.orch.Cancel(ctx, runID); err != nil {
		t.Fatalf("Cancel on terminal run: %v", err)
	}
}

func TestStatusUnknownRun(t *testing.T) {
	e := newEnv(t, nil, nil)
	if _, err := e.orch.Status(context.Background(), "no-such-run"); !errors.Is(err, orchestrator.ErrRunNotFound) {
		t.Fatalf("Status = %v, want ErrRunNotFound", err)
	}
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	e := newEnv(t, nil, nil)
	spec := baseSpec(run.ModeGeneral, false)
	spec.NumCuts = 50
	if _, err := e.orch.Start(context.Background(), spec); err == nil {
		t.Fatal("Start accepted an out-of-range spec")
	}
}

func TestRecoverResumesInFlightRun(t *testing.T) {
	store := statestore.NewMemoryStore()
	ctx := context.Background()

	// Simulate the snapshot a crashed process left behind mid-planning.
	spec := baseSpec(run.ModeGeneral, false)
	if err := spec.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("encode spec: %v", err)
	}
	seed := fsm.NewRepository(store, time.Hour, nil)
	machine, err := seed.Create(ctx, "run-crashed")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !machine.Transition(ctx, fsm.StatePlanGeneration, fsm.WithMetadata(map[string]string{orchestrator.MetaSpec: string(specJSON)})) {
		t.Fatal("seeding transition rejected")
	}

	e := newEnvWithStore(t, store, nil, nil)
	if err := e.orch.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	status := waitForState(t, e.orch, "run-crashed", fsm.StateEnd)
	if _, ok := status.Artifacts[run.ArtifactVideo]; !ok {
		t.Fatal("recovered run finished without a video artifact")
	}
}

func TestRecoverLeavesPausedRunsPaused(t *testing.T) {
	store := statestore.NewMemoryStore()
	ctx := context.Background()

	spec := baseSpec(run.ModeGeneral, true)
	if err := spec.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("encode spec: %v", err)
	}
	seed := fsm.NewRepository(store, time.Hour, nil)
	machine, err := seed.Create(ctx, "run-paused")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	machine.Transition(ctx, fsm.StatePlanGeneration, fsm.WithMetadata(map[string]string{orchestrator.MetaSpec: string(specJSON)}))
	machine.Transition(ctx, fsm.StatePlanReview)

	e := newEnvWithStore(t, store, nil, nil)
	if err := e.orch.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	status, err := e.orch.Status(ctx, "run-paused")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != string(fsm.StatePlanReview) {
		t.Fatalf("paused run moved to %s during recovery", status.State)
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
