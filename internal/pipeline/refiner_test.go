package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"thinktwice/internal/model"
)

func TestRefineAppliesModelOutput(t *testing.T) {
	fake := newFakeLLM()
	fake.queue("submit_refinement", t, map[string]any{
		"refined_response": "Corrected text.",
		"changes_made": []map[string]any{
			{"target_id": "V1", "change": "fixed the boiling point figure", "type": "factual_correction"},
		},
		"confidence": 85,
	})

	r := NewRefiner(fake, zap.NewNop())
	critique := model.CritiqueResult{OverallConfidence: 60}
	result := r.Refine(context.Background(), "Original text.", critique, nil, nil)

	if result.RefinedText != "Corrected text." {
		t.Errorf("RefinedText = %q", result.RefinedText)
	}
	if len(result.ChangesMade) != 1 || result.ChangesMade[0].Type != "factual_correction" {
		t.Errorf("ChangesMade = %+v", result.ChangesMade)
	}
	if result.ConfidenceAfter != 85 {
		t.Errorf("ConfidenceAfter = %d, want 85", result.ConfidenceAfter)
	}
}

func TestRefineFailureKeepsCandidateUnchanged(t *testing.T) {
	fake := newFakeLLM()
	fake.toolErrs["submit_refinement"] = errors.New("upstream down")

	r := NewRefiner(fake, zap.NewNop())
	critique := model.CritiqueResult{OverallConfidence: 55}
	result := r.Refine(context.Background(), "Original text.", critique, nil, nil)

	if result.RefinedText != "Original text." {
		t.Errorf("RefinedText = %q, want the unchanged candidate", result.RefinedText)
	}
	if len(result.ChangesMade) != 0 {
		t.Errorf("ChangesMade = %+v, want none", result.ChangesMade)
	}
	if result.ConfidenceAfter != 55 {
		t.Errorf("ConfidenceAfter = %d, want the critique confidence", result.ConfidenceAfter)
	}
}

func TestRefineEmptyTextKeepsCandidateUnchanged(t *testing.T) {
	fake := newFakeLLM()
	fake.queue("submit_refinement", t, map[string]any{
		"refined_response": "",
		"changes_made":     []map[string]any{},
		"confidence":       90,
	})

	r := NewRefiner(fake, zap.NewNop())
	result := r.Refine(context.Background(), "Original text.", model.CritiqueResult{OverallConfidence: 50}, nil, nil)

	if result.RefinedText != "Original text." {
		t.Errorf("RefinedText = %q, want the unchanged candidate", result.RefinedText)
	}
}

func TestSortFindings(t *testing.T) {
	r := NewRefiner(newFakeLLM(), zap.NewNop())

	critique := model.CritiqueResult{
		ConstraintEvaluations: []model.ConstraintEvaluation{
			{ConstraintID: "C1", Verdict: model.VerdictSatisfied, Confidence: 90, EvidenceQuote: "exactly three paragraphs"},
			{ConstraintID: "C2", Verdict: model.VerdictViolated, Confidence: 95, Feedback: "wrong count"},
			{ConstraintID: "C3", Verdict: model.VerdictPartiallySatisfied, Confidence: 70},
		},
		StrengthsToPreserve: []string{"Good structure"},
	}
	verifications := []model.VerificationResult{
		{ClaimID: "V1", Claim: "a", CombinedVerdict: model.ClaimVerified},
		{ClaimID: "V2", Claim: "b", CombinedVerdict: model.ClaimRefuted, WebExplanation: "contradicted"},
		{ClaimID: "V3", Claim: "c", CombinedVerdict: model.ClaimUnclear},
	}

	strengths, fixes, acknowledge := r.sortFindings(critique, verifications)

	// Critique free-text strength plus the satisfied C1
	if len(strengths) != 2 {
		t.Fatalf("strengths = %v, want the critique strength and the satisfied constraint", strengths)
	}
	if !strings.Contains(strengths[1], "[C1]") || !strings.Contains(strengths[1], "exactly three paragraphs") {
		t.Errorf("strengths[1] = %q, want the satisfied constraint with its evidence quote", strengths[1])
	}
	// C2 violated, C3 partial, V2 refuted
	if len(fixes) != 3 {
		t.Errorf("fixes = %v, want 3 entries", fixes)
	}
	if len(acknowledge) != 1 {
		t.Errorf("acknowledge = %v, want the unclear claim only", acknowledge)
	}
}
