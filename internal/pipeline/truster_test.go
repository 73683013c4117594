package pipeline

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"thinktwice/internal/model"
)

func TestTrustIdenticalTextsSkipsComparison(t *testing.T) {
	fake := newFakeLLM()

	tr := NewTruster(fake, true, zap.NewNop())
	result := tr.TrustAndRank(context.Background(), "Same text.", "  Same text.  ", nil, nil)

	if result.Winner != model.WinnerRefined {
		t.Errorf("winner = %s, want refined", result.Winner)
	}
	if result.DraftScore != 75 || result.RefinedScore != 75 {
		t.Errorf("scores = %d/%d, want 75/75", result.DraftScore, result.RefinedScore)
	}
	if fake.callCount("submit_trust_decision") != 0 {
		t.Error("identical texts still triggered an LLM comparison")
	}
}

func TestTrustNonBlendedWinnerIsVerbatim(t *testing.T) {
	fake := newFakeLLM()
	fake.queue("submit_trust_decision", t, map[string]any{
		"winner":        "draft",
		"reasoning":     "Refinement broke the format.",
		"draft_score":   80,
		"refined_score": 55,
		// Retyped copy with formatting stripped; must be ignored
		"final_output": "draft with QUOTES stripped",
		"blended":      false,
	})

	draft := `"Draft WITH its exact formatting."`
	tr := NewTruster(fake, true, zap.NewNop())
	result := tr.TrustAndRank(context.Background(), draft, "refined text", nil, nil)

	if result.Winner != model.WinnerDraft {
		t.Fatalf("winner = %s, want draft", result.Winner)
	}
	if result.FinalOutput != draft {
		t.Errorf("FinalOutput = %q, want the exact draft text", result.FinalOutput)
	}
}

func TestTrustStructuralOverrideFlipsToDraft(t *testing.T) {
	fake := newFakeLLM()
	fake.queue("submit_trust_decision", t, map[string]any{
		"winner":        "refined",
		"reasoning":     "Reads better.",
		"draft_score":   70,
		"refined_score": 85,
		"final_output":  "Dear reader, your order ships soon.",
		"blended":       false,
	})

	constraints := []model.Constraint{
		{ID: "C1", Type: model.ConstraintFormat, Description: "Keep the [name] placeholder in square brackets", Priority: model.PriorityHigh, Verifiable: true},
	}
	draft := "Dear [name], your order [order id] ships soon."
	refined := "Dear reader, your order ships soon."

	tr := NewTruster(fake, true, zap.NewNop())
	result := tr.TrustAndRank(context.Background(), draft, refined, constraints, nil)

	if result.Winner != model.WinnerDraft {
		t.Errorf("winner = %s, want draft via structural override", result.Winner)
	}
	if result.FinalOutput != draft {
		t.Errorf("FinalOutput = %q, want the draft verbatim", result.FinalOutput)
	}
}

func TestTrustBlendDisabledFallsBackToHigherScore(t *testing.T) {
	fake := newFakeLLM()
	fake.queue("submit_trust_decision", t, map[string]any{
		"winner":        "blended",
		"reasoning":     "Best of both.",
		"draft_score":   82,
		"refined_score": 78,
		"final_output":  "a blend of both versions",
		"blended":       true,
	})

	draft := "original draft body"
	refined := "refined body"
	tr := NewTruster(fake, false, zap.NewNop())
	result := tr.TrustAndRank(context.Background(), draft, refined, nil, nil)

	if result.Winner != model.WinnerDraft {
		t.Errorf("winner = %s, want draft (higher score) with blending disabled", result.Winner)
	}
	if result.Blended {
		t.Error("Blended = true, want false")
	}
	if result.FinalOutput != draft {
		t.Errorf("FinalOutput = %q, want the draft verbatim", result.FinalOutput)
	}
}

func TestTrustBlendUsesModelOutput(t *testing.T) {
	fake := newFakeLLM()
	fake.queue("submit_trust_decision", t, map[string]any{
		"winner":        "blended",
		"reasoning":     "Intro from draft, facts from refined.",
		"draft_score":   75,
		"refined_score": 80,
		"final_output":  "blended final text",
		"blended":       true,
		"blend_notes":   "intro from draft",
	})

	tr := NewTruster(fake, true, zap.NewNop())
	result := tr.TrustAndRank(context.Background(), "draft body", "refined body", nil, nil)

	if result.Winner != model.WinnerBlended || !result.Blended {
		t.Errorf("winner = %s blended = %v, want blended/true", result.Winner, result.Blended)
	}
	if result.FinalOutput != "blended final text" {
		t.Errorf("FinalOutput = %q, want the blended text", result.FinalOutput)
	}
}

func TestTrustFailureDefaultsToRefined(t *testing.T) {
	fake := newFakeLLM() // no payload queued: no usable tool call

	tr := NewTruster(fake, true, zap.NewNop())
	result := tr.TrustAndRank(context.Background(), "draft body", "refined body", nil, nil)

	if result.Winner != model.WinnerRefined {
		t.Errorf("winner = %s, want refined on failure", result.Winner)
	}
	if result.DraftScore != 50 || result.RefinedScore != 60 {
		t.Errorf("scores = %d/%d, want 50/60", result.DraftScore, result.RefinedScore)
	}
	if result.FinalOutput != "refined body" {
		t.Errorf("FinalOutput = %q, want the refined text", result.FinalOutput)
	}
}
