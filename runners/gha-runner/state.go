package runner

import "github.com/pkg/errors"

// State is the phase of the bootstrap.
type State int

// States in the order they are entered. Failed may be entered from any
// state other than itself.
const (
	Validating State = iota
	RequestingToken
	StartingService
	ConfiguringRunner
	Handoff
	Failed
)

var stateNames = map[State]string{
	Validating:        "validating",
	RequestingToken:   "requesting_token",
	StartingService:   "starting_service",
	ConfiguringRunner: "configuring_runner",
	Handoff:           "handoff",
	Failed:            "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal is true for the final states: a successful Handoff replaces the
// process, Failed exits it.
func (s State) Terminal() bool {
	return s == Handoff || s == Failed
}

// Next validates the transition from s to to. Only the following state or
// Failed are reachable. Failed is never left, and Handoff is only left
// for Failed when the exec does not take over the process.
func (s State) Next(to State) error {
	if s == Failed || (s == Handoff && to != Failed) {
		return errors.Errorf("invalid transition %v -> %v: %v is terminal", s, to, s)
	}

	if to == Failed || to == s+1 {
		return nil
	}

	return errors.Errorf("invalid transition %v -> %v", s, to)
}
