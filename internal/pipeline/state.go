package pipeline

import (
	"fmt"

	"exampipe/internal/stage"
)

// State is the coordinator's position in the run.
type State string

const (
	NotStarted  State = "NotStarted"
	Transcribed State = "Transcribed"
	Perturbed   State = "Perturbed"
	Validated   State = "Validated"
	Extracted   State = "Extracted"
	Done        State = "Done"
	Aborted     State = "Aborted"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Done || s == Aborted
}

var forward = map[State]State{
	NotStarted:  Transcribed,
	Transcribed: Perturbed,
	Perturbed:   Validated,
	Validated:   Extracted,
	Extracted:   Done,
}

// Transition validates a move from one state to another. Aborted is reachable
// from any non-terminal state; every other move must follow stage order.
func Transition(from, to State) (State, error) {
	if from.Terminal() {
		return from, fmt.Errorf("pipeline: no transition from terminal state %s", from)
	}
	if to == Aborted || forward[from] == to {
		return to, nil
	}
	return from, fmt.Errorf("pipeline: invalid transition %s -> %s", from, to)
}

// stateAfter is the state reached when name completes with accepted output.
func stateAfter(name stage.Name) State {
	switch name {
	case stage.Transcription:
		return Transcribed
	case stage.Perturbation:
		return Perturbed
	case stage.Validation:
		return Validated
	default:
		return Extracted
	}
}

// stateBefore is the state a run resumed at name starts from.
func stateBefore(name stage.Name) State {
	switch name {
	case stage.Perturbation:
		return Transcribed
	case stage.Validation:
		return Perturbed
	case stage.Extraction:
		return Validated
	default:
		return NotStarted
	}
}

// emptyReason explains an abort when name accepted nothing.
func emptyReason(name stage.Name) string {
	switch name {
	case stage.Transcription:
		return "no questions transcribed"
	case stage.Perturbation:
		return "no questions perturbed"
	case stage.Validation:
		return "no questions passed validation"
	default:
		return "no LaTeX document produced"
	}
}
