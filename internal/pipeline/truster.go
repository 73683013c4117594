package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"thinktwice/internal/llm"
	"thinktwice/internal/model"
	"thinktwice/internal/structural"
)

var trustTool = llm.ToolSpec{
	Name:        "submit_trust_decision",
	Description: "Submit the trust comparison decision",
	Schema: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"winner": {
				Type: jsonschema.String,
				Enum: []string{"draft", "refined", "blended"},
			},
			"reasoning": {
				Type:        jsonschema.String,
				Description: "Explanation of why this version was chosen",
			},
			"draft_score":   {Type: jsonschema.Integer},
			"refined_score": {Type: jsonschema.Integer},
			"final_output": {
				Type:        jsonschema.String,
				Description: "The chosen final output text (or blended version)",
			},
			"blended": {
				Type:        jsonschema.Boolean,
				Description: "Whether the output is a blend of both versions",
			},
			"blend_notes": {
				Type:        jsonschema.String,
				Description: "If blended, explain which parts came from where",
			},
		},
		Required: []string{"winner", "reasoning", "draft_score", "refined_score", "final_output", "blended"},
	},
}

// Truster arbitrates between the original draft and the refined candidate.
// Non-blended winners always carry the exact original text rather than the
// model's retyped copy, and a structural safety net flips the decision back
// to the draft when refinement lost required structure.
type Truster struct {
	llm          llm.Service
	blendEnabled bool
	logger       *zap.Logger
}

// NewTruster creates a truster
func NewTruster(svc llm.Service, blendEnabled bool, logger *zap.Logger) *Truster {
	return &Truster{llm: svc, blendEnabled: blendEnabled, logger: logger}
}

// TrustAndRank compares both versions and selects the final output
func (t *Truster) TrustAndRank(ctx context.Context, draft, refined string, constraints []model.Constraint, verifications []model.VerificationResult) model.TrustResult {
	// Identical texts need no comparison
	if strings.TrimSpace(draft) == strings.TrimSpace(refined) {
		t.logger.Info("draft and refined are identical, using refined")
		return model.TrustResult{
			Winner:       model.WinnerRefined,
			Reasoning:    "Draft and refined versions are identical",
			DraftScore:   75,
			RefinedScore: 75,
			FinalOutput:  refined,
			Blended:      false,
		}
	}

	draftAnalysis := structural.Analyze(draft)
	refinedAnalysis := structural.Analyze(refined)

	user := fmt.Sprintf(trustUserPrompt,
		formatConstraintsShort(constraints),
		draft,
		refined,
		formatVerifications(verifications),
	) + fmt.Sprintf("\n\n%s\n\nDRAFT %s\n\nREFINED %s",
		structural.FormatDelta(draftAnalysis, refinedAnalysis),
		structural.FormatForPrompt(draftAnalysis),
		structural.FormatForPrompt(refinedAnalysis),
	)

	t.logger.Info("running trust comparison")

	fallback := model.TrustResult{
		Winner:       model.WinnerRefined,
		Reasoning:    "Trust comparison failed, defaulting to refined version",
		DraftScore:   50,
		RefinedScore: 60,
		FinalOutput:  refined,
		Blended:      false,
	}

	raw, err := t.llm.GenerateStructured(ctx, trustSystemPrompt, user, trustTool)
	if err != nil {
		t.logger.Error("trust comparison failed, using refined output", zap.Error(err))
		return fallback
	}
	if raw == nil {
		t.logger.Warn("trust comparison returned no tool call, using refined output")
		return fallback
	}

	var payload struct {
		Winner       string `json:"winner"`
		Reasoning    string `json:"reasoning"`
		DraftScore   *int   `json:"draft_score"`
		RefinedScore *int   `json:"refined_score"`
		FinalOutput  string `json:"final_output"`
		Blended      bool   `json:"blended"`
		BlendNotes   string `json:"blend_notes"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.logger.Warn("trust payload unparseable, using refined output", zap.Error(err))
		return fallback
	}

	draftScore, refinedScore := 50, 60
	if payload.DraftScore != nil {
		draftScore = *payload.DraftScore
	}
	if payload.RefinedScore != nil {
		refinedScore = *payload.RefinedScore
	}

	winner := model.TrustWinner(payload.Winner)
	switch winner {
	case model.WinnerDraft, model.WinnerRefined, model.WinnerBlended:
	default:
		winner = model.WinnerRefined
	}
	blended := payload.Blended || winner == model.WinnerBlended

	var finalOutput string
	switch {
	case blended && !t.blendEnabled:
		// Blend disabled: fall back to whichever version scored higher
		if refinedScore >= draftScore {
			winner = model.WinnerRefined
			finalOutput = refined
		} else {
			winner = model.WinnerDraft
			finalOutput = draft
		}
		blended = false
	case blended:
		// A blend has no verbatim source, so the model's text is the output
		finalOutput = payload.FinalOutput
		if finalOutput == "" {
			finalOutput = refined
		}
	case winner == model.WinnerDraft:
		finalOutput = draft
	default:
		finalOutput = refined
	}

	// Safety net: if the chosen output lost structural properties the draft
	// had and the constraints require, the draft wins verbatim
	if winner != model.WinnerDraft && !blended {
		if reason := structuralOverride(draftAnalysis, refinedAnalysis, constraints); reason != "" {
			t.logger.Info("structural override to draft", zap.String("reason", reason))
			winner = model.WinnerDraft
			finalOutput = draft
		}
	}

	result := model.TrustResult{
		Winner:       winner,
		Reasoning:    payload.Reasoning,
		DraftScore:   draftScore,
		RefinedScore: refinedScore,
		FinalOutput:  finalOutput,
		Blended:      blended,
		BlendNotes:   payload.BlendNotes,
	}

	t.logger.Info("trust decision",
		zap.String("winner", string(result.Winner)),
		zap.Int("draft_score", result.DraftScore),
		zap.Int("refined_score", result.RefinedScore),
		zap.Bool("blended", result.Blended),
	)
	return result
}

// structuralOverride reports why the draft must win: a non-empty reason
// means refinement degraded a structural property that some constraint
// mentions. Keyword matching keeps the check general rather than tied to
// specific prompt wording.
func structuralOverride(draft, refined structural.Measurement, constraints []model.Constraint) string {
	var b strings.Builder
	for _, c := range constraints {
		b.WriteString(strings.ToLower(c.Description))
		b.WriteString(" ")
	}
	mentions := b.String()

	anyOf := func(keywords ...string) bool {
		for _, kw := range keywords {
			if strings.Contains(mentions, kw) {
				return true
			}
		}
		return false
	}

	if draft.StartsWithQuote && draft.EndsWithQuote &&
		!(refined.StartsWithQuote && refined.EndsWithQuote) &&
		anyOf("quotation", "quote", "wrap") {
		return "quotation wrapping lost"
	}

	if draft.PlaceholderCount > refined.PlaceholderCount &&
		anyOf("placeholder", "bracket", "[", "square") {
		return "placeholders decreased"
	}

	if draft.AllUppercase && !refined.AllUppercase &&
		anyOf("capital", "uppercase", "upper case") {
		return "uppercase lost"
	}

	if draft.AllLowercase && !refined.AllLowercase &&
		anyOf("lowercase", "lower case", "lower") {
		return "lowercase lost"
	}

	if draft.AllCapsWordCount > 0 && float64(refined.AllCapsWordCount) < float64(draft.AllCapsWordCount)*0.5 &&
		anyOf("capital", "caps", "uppercase") {
		return "capitalized words decreased"
	}

	if draft.HasPostscript && !refined.HasPostscript &&
		anyOf("postscript", "p.s.") {
		return "postscript lost"
	}

	if draft.HasSixStarSeparator && !refined.HasSixStarSeparator &&
		anyOf("******", "separator", "two responses") {
		return "separator lost"
	}

	if !draft.HasComma && refined.HasComma && anyOf("comma") {
		return "commas introduced"
	}

	if draft.BulletCount > 0 && refined.BulletCount < draft.BulletCount &&
		anyOf("bullet", "list item", "list point") {
		return "bullet count decreased"
	}

	return ""
}
