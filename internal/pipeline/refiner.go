package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"thinktwice/internal/llm"
	"thinktwice/internal/model"
	"thinktwice/internal/structural"
)

var refineTool = llm.ToolSpec{
	Name:        "submit_refinement",
	Description: "Submit the surgically refined response with a record of changes",
	Schema: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"refined_response": {
				Type:        jsonschema.String,
				Description: "The refined response text",
			},
			"changes_made": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"target_id": {
							Type:        jsonschema.String,
							Description: "The constraint or claim ID this change addresses",
						},
						"change": {Type: jsonschema.String},
						"type": {
							Type: jsonschema.String,
							Enum: []string{"content_addition", "factual_correction", "language_softening", "removal", "restructure", "source_addition"},
						},
					},
					Required: []string{"target_id", "change", "type"},
				},
			},
			"confidence": {
				Type:        jsonschema.Integer,
				Description: "Confidence in the refined response, 0-100",
			},
		},
		Required: []string{"refined_response", "changes_made", "confidence"},
	},
}

// Refiner applies surgical edits to the candidate, driven by the critique
// verdicts and verification results. It sorts the critique into preserve,
// fix, and acknowledge buckets so the model touches only what is broken.
type Refiner struct {
	llm    llm.Service
	logger *zap.Logger
}

// NewRefiner creates a refiner
func NewRefiner(svc llm.Service, logger *zap.Logger) *Refiner {
	return &Refiner{llm: svc, logger: logger}
}

// Refine produces the next candidate. On any failure the current candidate
// comes back unchanged so the loop can still converge or time out.
func (r *Refiner) Refine(
	ctx context.Context,
	draft string,
	critique model.CritiqueResult,
	verifications []model.VerificationResult,
	constraints []model.Constraint,
) model.RefineResult {
	strengths, fixes, acknowledge := r.sortFindings(critique, verifications)

	system := fmt.Sprintf(refineSystemPrompt,
		formatList(strengths, "Nothing specific identified."),
		formatList(fixes, "No specific fixes required."),
		formatList(acknowledge, "Nothing to acknowledge."),
	)
	user := fmt.Sprintf(refineUserPrompt,
		draft,
		formatEvaluations(critique.ConstraintEvaluations),
		formatVerifications(verifications),
		formatConstraints(constraints),
	) + "\n\n" + structural.FormatForPrompt(structural.Analyze(draft))

	r.logger.Info("refining response",
		zap.Int("strengths", len(strengths)),
		zap.Int("fixes", len(fixes)),
		zap.Int("acknowledge", len(acknowledge)),
	)

	unchanged := model.RefineResult{
		RefinedText:     draft,
		ChangesMade:     nil,
		ConfidenceAfter: critique.OverallConfidence,
	}

	raw, err := r.llm.GenerateStructured(ctx, system, user, refineTool)
	if err != nil {
		r.logger.Error("refinement failed, keeping candidate unchanged", zap.Error(err))
		return unchanged
	}
	if raw == nil {
		r.logger.Warn("refinement returned no tool call, keeping candidate unchanged")
		return unchanged
	}

	var payload struct {
		RefinedResponse string `json:"refined_response"`
		ChangesMade     []struct {
			TargetID string `json:"target_id"`
			Change   string `json:"change"`
			Type     string `json:"type"`
		} `json:"changes_made"`
		Confidence *int `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		r.logger.Warn("refinement payload unparseable, keeping candidate unchanged", zap.Error(err))
		return unchanged
	}
	if payload.RefinedResponse == "" {
		r.logger.Warn("refinement produced empty text, keeping candidate unchanged")
		return unchanged
	}

	changes := make([]model.ChangeRecord, 0, len(payload.ChangesMade))
	for _, ch := range payload.ChangesMade {
		changes = append(changes, model.ChangeRecord{
			TargetID: ch.TargetID,
			Change:   ch.Change,
			Type:     ch.Type,
		})
	}

	confidence := critique.OverallConfidence
	if payload.Confidence != nil {
		confidence = *payload.Confidence
	}

	r.logger.Info("refinement complete",
		zap.Int("changes", len(changes)),
		zap.Int("confidence", confidence),
	)
	return model.RefineResult{
		RefinedText:     payload.RefinedResponse,
		ChangesMade:     changes,
		ConfidenceAfter: confidence,
	}
}

// sortFindings splits the critique and verification outcomes into what must
// stay untouched, what must be fixed, and what can only be acknowledged
func (r *Refiner) sortFindings(critique model.CritiqueResult, verifications []model.VerificationResult) (strengths, fixes, acknowledge []string) {
	strengths = append(strengths, critique.StrengthsToPreserve...)

	for _, ev := range critique.ConstraintEvaluations {
		switch ev.Verdict {
		case model.VerdictSatisfied:
			item := fmt.Sprintf("[%s] already satisfied", ev.ConstraintID)
			if ev.EvidenceQuote != "" {
				item = fmt.Sprintf("[%s] already satisfied: %q", ev.ConstraintID, ev.EvidenceQuote)
			}
			strengths = append(strengths, item)
		case model.VerdictViolated, model.VerdictPartiallySatisfied:
			item := fmt.Sprintf("[%s] %s", ev.ConstraintID, ev.Feedback)
			if ev.Feedback == "" {
				item = fmt.Sprintf("[%s] constraint not fully satisfied", ev.ConstraintID)
			}
			fixes = append(fixes, item)
		}
	}

	for _, v := range verifications {
		switch v.CombinedVerdict {
		case model.ClaimRefuted:
			fixes = append(fixes, fmt.Sprintf("[%s] refuted claim: %s (%s)", v.ClaimID, v.Claim, v.WebExplanation))
		case model.ClaimUnclear:
			acknowledge = append(acknowledge, fmt.Sprintf("[%s] unverified claim: %s", v.ClaimID, v.Claim))
		}
	}
	return strengths, fixes, acknowledge
}
