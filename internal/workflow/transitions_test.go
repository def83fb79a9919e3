package workflow

import (
	"testing"

	"backend/internal/model"
)

func TestNextStageChain(t *testing.T) {
	tests := []struct {
		current   model.WorkflowStage
		wantNext  model.WorkflowStage
		wantStamp Stamp
	}{
		{model.StageDraft, model.StageSupervisorReview, StampNone},
		{model.StageSupervisorReview, model.StageManagerReview, StampSupervisor},
		{model.StageManagerReview, model.StageEngineerReview, StampManager},
		{model.StageEngineerReview, model.StageCompleted, StampEngineer},
	}

	for _, tt := range tests {
		next, stamp, ok := NextStage(tt.current)
		if !ok {
			t.Fatalf("NextStage(%s): ok = false, want true", tt.current)
		}
		if next != tt.wantNext {
			t.Errorf("NextStage(%s) = %s, want %s", tt.current, next, tt.wantNext)
		}
		if stamp != tt.wantStamp {
			t.Errorf("NextStage(%s) stamp = %d, want %d", tt.current, stamp, tt.wantStamp)
		}
	}
}

func TestNextStageCompletedIsTerminal(t *testing.T) {
	if _, _, ok := NextStage(model.StageCompleted); ok {
		t.Error("NextStage(completed): ok = true, want false")
	}
}

func TestNextStageUnknown(t *testing.T) {
	if _, _, ok := NextStage("archived"); ok {
		t.Error("NextStage(archived): ok = true, want false")
	}
}

func TestPipelineVisitsEveryStageExactlyOnce(t *testing.T) {
	seen := map[model.WorkflowStage]bool{model.StageDraft: true}
	stage := model.StageDraft

	for i := 0; i < 10; i++ {
		next, _, ok := NextStage(stage)
		if !ok {
			break
		}
		if seen[next] {
			t.Fatalf("stage %s reached twice", next)
		}
		seen[next] = true
		stage = next
	}

	if stage != model.StageCompleted {
		t.Errorf("pipeline ended at %s, want %s", stage, model.StageCompleted)
	}
	if len(seen) != 5 {
		t.Errorf("pipeline visited %d stages, want 5", len(seen))
	}
}
