package fsm

import "strings"

// State identifies one run lifecycle phase.
type State string

const (
	StateInit            State = "Init"
	StatePlanGeneration  State = "PlanGeneration"
	StatePlanReview      State = "PlanReview"
	StateAssetGeneration State = "AssetGeneration"
	StateAssetReview     State = "AssetReview"
	StateLayoutReview    State = "LayoutReview"
	StateRendering       State = "Rendering"
	StateQA              State = "QA"
	StateEnd             State = "End"
	StateFailed          State = "Failed"
)

var allStates = []State{
	StateInit,
	StatePlanGeneration,
	StatePlanReview,
	StateAssetGeneration,
	StateAssetReview,
	StateLayoutReview,
	StateRendering,
	StateQA,
	StateEnd,
	StateFailed,
}

// transitions is the authoritative table of directed edges. Self-loops
// are forbidden. The Failed -> PlanReview edge lets an operator resume
// a failed run without discarding submitted corrections.
var transitions = map[State][]State{
	StateInit:            {StatePlanGeneration, StateFailed},
	StatePlanGeneration:  {StatePlanReview, StateAssetGeneration, StateFailed},
	StatePlanReview:      {StateAssetGeneration, StatePlanGeneration, StateFailed},
	StateAssetGeneration: {StateAssetReview, StateLayoutReview, StateRendering, StateFailed},
	StateAssetReview:     {StateLayoutReview, StateRendering, StateAssetGeneration, StateFailed},
	StateLayoutReview:    {StateRendering, StateAssetGeneration, StateFailed},
	StateRendering:       {StateQA, StateFailed},
	StateQA:              {StateEnd, StatePlanGeneration, StateFailed},
	StateEnd:             {},
	StateFailed:          {StatePlanGeneration, StatePlanReview},
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	trimmed := strings.TrimSpace(value)
	for _, state := range allStates {
		if strings.EqualFold(trimmed, string(state)) {
			return state, true
		}
	}
	return "", false
}

// CanTransition reports whether the table contains the from -> to edge.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Successors returns the states reachable from a state in one step.
func Successors(from State) []State {
	next := transitions[from]
	cp := make([]State, len(next))
	copy(cp, next)
	return cp
}

// IsTerminal reports whether a state ends the run lifecycle.
func (s State) IsTerminal() bool {
	return s == StateEnd || s == StateFailed
}

// IsReview reports whether the state is a human checkpoint.
func (s State) IsReview() bool {
	switch s {
	case StatePlanReview, StateAssetReview, StateLayoutReview:
		return true
	}
	return false
}
