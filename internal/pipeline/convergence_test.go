package pipeline

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"thinktwice/internal/model"
)

var convergenceConstraints = []model.Constraint{
	{ID: "C1", Type: model.ConstraintAccuracy, Description: "Be accurate", Priority: model.PriorityHigh, Verifiable: true},
	{ID: "C2", Type: model.ConstraintTone, Description: "Stay neutral", Priority: model.PriorityLow, Verifiable: false},
}

func TestConvergenceForcesMaxIterations(t *testing.T) {
	fake := newFakeLLM()
	fake.queue("submit_convergence", t, map[string]any{
		"constraint_checks": []map[string]any{
			{"constraint_id": "C1", "satisfied": false, "confidence": 50},
		},
		"decision":           "continue",
		"overall_confidence": 50,
	})

	cc := NewConvergenceChecker(fake, zap.NewNop())
	result := cc.Check(context.Background(), "refined", convergenceConstraints, 3, 3, 80)

	if result.Decision != model.MaxIterationsReached {
		t.Errorf("decision = %s, want max_iterations_reached at the cap", result.Decision)
	}
}

func TestConvergenceOverridesToConverged(t *testing.T) {
	// Model says continue, but no high-priority constraint is unsatisfied
	// and confidence clears the threshold.
	fake := newFakeLLM()
	fake.queue("submit_convergence", t, map[string]any{
		"constraint_checks": []map[string]any{
			{"constraint_id": "C1", "satisfied": true, "confidence": 90},
			{"constraint_id": "C2", "satisfied": false, "confidence": 60},
		},
		"decision":           "continue",
		"overall_confidence": 85,
	})

	cc := NewConvergenceChecker(fake, zap.NewNop())
	result := cc.Check(context.Background(), "refined", convergenceConstraints, 1, 3, 80)

	if result.Decision != model.Converged {
		t.Errorf("decision = %s, want converged", result.Decision)
	}
	if result.SatisfiedCount != 1 || result.TotalCount != 2 {
		t.Errorf("counts = %d/%d, want 1/2", result.SatisfiedCount, result.TotalCount)
	}
}

func TestConvergenceOverridesToContinue(t *testing.T) {
	// Model says converged, but a high-priority constraint is unsatisfied.
	fake := newFakeLLM()
	fake.queue("submit_convergence", t, map[string]any{
		"constraint_checks": []map[string]any{
			{"constraint_id": "C1", "satisfied": false, "confidence": 40},
		},
		"decision":           "converged",
		"overall_confidence": 90,
	})

	cc := NewConvergenceChecker(fake, zap.NewNop())
	result := cc.Check(context.Background(), "refined", convergenceConstraints, 1, 3, 80)

	if result.Decision != model.Continue {
		t.Errorf("decision = %s, want continue with a high-priority constraint unsatisfied", result.Decision)
	}
}

func TestConvergenceFailureExitsLoop(t *testing.T) {
	fake := newFakeLLM()
	fake.toolErrs["submit_convergence"] = errors.New("upstream down")

	cc := NewConvergenceChecker(fake, zap.NewNop())
	result := cc.Check(context.Background(), "refined", convergenceConstraints, 1, 3, 80)

	if result.Decision != model.Converged {
		t.Errorf("decision = %s, want converged so the loop exits", result.Decision)
	}
	if result.Confidence != 0 {
		t.Errorf("confidence = %d, want 0", result.Confidence)
	}
}
