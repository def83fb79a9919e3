package workflow

import "backend/internal/model"

// Stamp identifies which stage-completion timestamp a transition sets.
type Stamp int

const (
	StampNone Stamp = iota
	StampSupervisor
	StampManager
	StampEngineer
)

// transition maps a stage to its successor and the completion stamp set
// when the record leaves that stage.
type transition struct {
	next  model.WorkflowStage
	stamp Stamp
}

// The pipeline is strictly linear: no skips, no backward moves.
// Completed is terminal. Leaving draft stamps nothing; every review
// stage stamps its own completion time on the way out.
var transitions = map[model.WorkflowStage]transition{
	model.StageDraft:            {model.StageSupervisorReview, StampNone},
	model.StageSupervisorReview: {model.StageManagerReview, StampSupervisor},
	model.StageManagerReview:    {model.StageEngineerReview, StampManager},
	model.StageEngineerReview:   {model.StageCompleted, StampEngineer},
}

// NextStage returns the successor of the current stage and the stamp to
// set. ok is false when the stage has no outgoing transition (completed,
// or an unrecognized value).
func NextStage(current model.WorkflowStage) (next model.WorkflowStage, stamp Stamp, ok bool) {
	t, ok := transitions[current]
	if !ok {
		return "", StampNone, false
	}
	return t.next, t.stamp, true
}
