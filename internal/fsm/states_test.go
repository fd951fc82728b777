package fsm_test

import (
	"testing"

	"reelflow/internal/fsm"
)

func TestCanTransitionAllowsTableEdges(t *testing.T) {
	allowed := []struct {
		from fsm.State
		to   fsm.State
	}{
		{fsm.StateInit, fsm.StatePlanGeneration},
		{fsm.StatePlanGeneration, fsm.StatePlanReview},
		{fsm.StatePlanGeneration, fsm.StateAssetGeneration},
		{fsm.StatePlanReview, fsm.StatePlanGeneration},
		{fsm.StateAssetGeneration, fsm.StateAssetReview},
		{fsm.StateAssetGeneration, fsm.StateLayoutReview},
		{fsm.StateAssetGeneration, fsm.StateRendering},
		{fsm.StateAssetReview, fsm.StateLayoutReview},
		{fsm.StateLayoutReview, fsm.StateRendering},
		{fsm.StateRendering, fsm.StateQA},
		{fsm.StateQA, fsm.StateEnd},
		{fsm.StateQA, fsm.StatePlanGeneration},
		{fsm.StateFailed, fsm.StatePlanReview},
		{fsm.StateFailed, fsm.StatePlanGeneration},
	}
	for _, edge := range allowed {
		if !fsm.CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be allowed", edge.from, edge.to)
		}
	}
}

func TestCanTransitionRejectsClosedEdges(t *testing.T) {
	rejected := []struct {
		from fsm.State
		to   fsm.State
	}{
		{fsm.StateInit, fsm.StateRendering},
		{fsm.StateInit, fsm.StateEnd},
		{fsm.StatePlanReview, fsm.StateRendering},
		{fsm.StateRendering, fsm.StateEnd},
		{fsm.StateEnd, fsm.StatePlanGeneration},
		{fsm.StateEnd, fsm.StateFailed},
		{fsm.StateFailed, fsm.StateEnd},
		{fsm.StateQA, fsm.StateRendering},
	}
	for _, edge := range rejected {
		if fsm.CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be rejected", edge.from, edge.to)
		}
	}
}

func TestCanTransitionForbidsSelfLoops(t *testing.T) {
	for _, state := range fsm.AllStates() {
		if fsm.CanTransition(state, state) {
			t.Errorf("self-loop allowed for %s", state)
		}
	}
}

func TestTerminalStatesHaveNoForwardEdges(t *testing.T) {
	if got := fsm.Successors(fsm.StateEnd); len(got) != 0 {
		t.Errorf("End should have no successors, got %v", got)
	}
	for _, next := range fsm.Successors(fsm.StateFailed) {
		if next != fsm.StatePlanGeneration && next != fsm.StatePlanReview {
			t.Errorf("unexpected Failed successor %s", next)
		}
	}
}

func TestParseState(t *testing.T) {
	if state, ok := fsm.ParseState("planreview"); !ok || state != fsm.StatePlanReview {
		t.Fatalf("ParseState(planreview) = %q, %v", state, ok)
	}
	if state, ok := fsm.ParseState(" QA "); !ok || state != fsm.StateQA {
		t.Fatalf("ParseState( QA ) = %q, %v", state, ok)
	}
	if _, ok := fsm.ParseState("Ripping"); ok {
		t.Fatal("ParseState accepted an unknown state")
	}
}

func TestStateClassification(t *testing.T) {
	for _, state := range []fsm.State{fsm.StateEnd, fsm.StateFailed} {
		if !state.IsTerminal() {
			t.Errorf("%s should be terminal", state)
		}
	}
	for _, state := range []fsm.State{fsm.StatePlanReview, fsm.StateAssetReview, fsm.StateLayoutReview} {
		if !state.IsReview() {
			t.Errorf("%s should be a review checkpoint", state)
		}
		if state.IsTerminal() {
			t.Errorf("%s should not be terminal", state)
		}
	}
	if fsm.StateRendering.IsReview() {
		t.Error("Rendering should not be a review checkpoint")
	}
}
