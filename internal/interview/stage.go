package interview

import "fmt"

// Stage is the coarse phase of an interview.
type Stage string

const (
	StageGreeting          Stage = "greeting"
	StageProfileCollection Stage = "profile_collection"
	StageDeepInterview     Stage = "deep_interview"
	StageMemoirReady       Stage = "memoir_ready"
	StageClosed            Stage = "closed"
)

// transitions is the complete stage graph. A stage missing from a value list
// cannot be reached from the key stage.
var transitions = map[Stage][]Stage{
	StageGreeting:          {StageProfileCollection, StageMemoirReady, StageClosed},
	StageProfileCollection: {StageDeepInterview, StageMemoirReady, StageClosed},
	StageDeepInterview:     {StageDeepInterview, StageMemoirReady, StageClosed},
	StageMemoirReady:       {StageDeepInterview, StageMemoirReady, StageClosed},
	StageClosed:            {},
}

// Stages returns every stage in state-machine order.
func Stages() []Stage {
	return []Stage{StageGreeting, StageProfileCollection, StageDeepInterview, StageMemoirReady, StageClosed}
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Stage) String() string {
	return string(s)
}

// CanTransition reports whether the graph has an edge from -> to.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStage converts a persisted stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return st, nil
}
