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

var critiqueTool = llm.ToolSpec{
	Name:        "submit_critique",
	Description: "Submit per-constraint evaluation and extracted claims",
	Schema: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"constraint_evaluations": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"constraint_id": {Type: jsonschema.String},
						"verdict": {
							Type: jsonschema.String,
							Enum: []string{"satisfied", "partially_satisfied", "violated"},
						},
						"confidence": {Type: jsonschema.Integer},
						"feedback":   {Type: jsonschema.String},
						"evidence_quote": {
							Type:        jsonschema.String,
							Description: "Exact text from the draft supporting this verdict",
						},
					},
					Required: []string{"constraint_id", "verdict", "confidence"},
				},
			},
			"claims_to_verify": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"id": {
							Type:        jsonschema.String,
							Description: "V1, V2, V3...",
						},
						"claim":             {Type: jsonschema.String},
						"source_constraint": {Type: jsonschema.String},
						"source_quote":      {Type: jsonschema.String},
					},
					Required: []string{"id", "claim", "source_constraint", "source_quote"},
				},
			},
			"overall_confidence": {Type: jsonschema.Integer},
			"strengths_to_preserve": {
				Type:  jsonschema.Array,
				Items: &jsonschema.Definition{Type: jsonschema.String},
			},
		},
		Required: []string{"constraint_evaluations", "claims_to_verify", "overall_confidence", "strengths_to_preserve"},
	},
}

// Critic evaluates the candidate per constraint and extracts the factual
// claims the verifier will check. Exact structural counts are appended to
// the prompt because the model cannot compute them reliably.
type Critic struct {
	llm    llm.Service
	logger *zap.Logger
}

// NewCritic creates a critic
func NewCritic(svc llm.Service, logger *zap.Logger) *Critic {
	return &Critic{llm: svc, logger: logger}
}

// Critique produces per-constraint verdicts and claims for one iteration
func (c *Critic) Critique(ctx context.Context, draft string, constraints []model.Constraint, failing []string, input string) model.CritiqueResult {
	failingStr := "None"
	if len(failing) > 0 {
		failingStr = strings.Join(failing, ", ")
	}

	measurements := structural.FormatForPrompt(structural.Analyze(draft))

	system := fmt.Sprintf(critiqueSystemPrompt, failingStr)
	user := fmt.Sprintf(critiqueUserPrompt, formatConstraints(constraints), draft, input) +
		"\n\n" + measurements

	c.logger.Info("running critique",
		zap.Int("constraints", len(constraints)),
		zap.Int("failing", len(failing)),
	)

	raw, err := c.llm.GenerateStructured(ctx, system, user, critiqueTool)
	if err != nil {
		c.logger.Error("critique failed, using fallback", zap.Error(err))
		return fallbackCritique(constraints)
	}
	if raw == nil {
		c.logger.Warn("critique returned no tool call, using fallback")
		return fallbackCritique(constraints)
	}

	var payload struct {
		ConstraintEvaluations []struct {
			ConstraintID  string `json:"constraint_id"`
			Verdict       string `json:"verdict"`
			Confidence    *int   `json:"confidence"`
			Feedback      string `json:"feedback"`
			EvidenceQuote string `json:"evidence_quote"`
		} `json:"constraint_evaluations"`
		ClaimsToVerify []struct {
			ID               string `json:"id"`
			Claim            string `json:"claim"`
			SourceConstraint string `json:"source_constraint"`
			SourceQuote      string `json:"source_quote"`
		} `json:"claims_to_verify"`
		OverallConfidence   *int     `json:"overall_confidence"`
		StrengthsToPreserve []string `json:"strengths_to_preserve"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.logger.Warn("critique payload unparseable, using fallback", zap.Error(err))
		return fallbackCritique(constraints)
	}

	evaluations := make([]model.ConstraintEvaluation, 0, len(payload.ConstraintEvaluations))
	for _, ev := range payload.ConstraintEvaluations {
		verdict := model.ConstraintVerdict(ev.Verdict)
		if ev.ConstraintID == "" || !verdict.Valid() {
			c.logger.Warn("skipping malformed evaluation", zap.String("constraint_id", ev.ConstraintID))
			continue
		}
		confidence := 50
		if ev.Confidence != nil {
			confidence = *ev.Confidence
		}
		evaluations = append(evaluations, model.ConstraintEvaluation{
			ConstraintID:  ev.ConstraintID,
			Verdict:       verdict,
			Confidence:    confidence,
			Feedback:      ev.Feedback,
			EvidenceQuote: ev.EvidenceQuote,
		})
	}

	claims := make([]model.ClaimToVerify, 0, len(payload.ClaimsToVerify))
	for _, cl := range payload.ClaimsToVerify {
		if cl.ID == "" || cl.Claim == "" {
			c.logger.Warn("skipping malformed claim", zap.String("id", cl.ID))
			continue
		}
		claims = append(claims, model.ClaimToVerify{
			ID:               cl.ID,
			Claim:            cl.Claim,
			SourceConstraint: cl.SourceConstraint,
			SourceQuote:      cl.SourceQuote,
		})
	}

	confidence := 50
	if payload.OverallConfidence != nil {
		confidence = *payload.OverallConfidence
	}

	result := model.CritiqueResult{
		ConstraintEvaluations: evaluations,
		ClaimsToVerify:        claims,
		OverallConfidence:     confidence,
		StrengthsToPreserve:   payload.StrengthsToPreserve,
	}

	c.logger.Info("critique complete",
		zap.Int("evaluations", len(evaluations)),
		zap.Int("claims", len(claims)),
		zap.Int("confidence", confidence),
	)
	return result
}

// fallbackCritique marks every constraint partially satisfied at low
// confidence with no claims, so the loop continues without fabricated
// verdicts
func fallbackCritique(constraints []model.Constraint) model.CritiqueResult {
	evaluations := make([]model.ConstraintEvaluation, 0, len(constraints))
	for _, c := range constraints {
		evaluations = append(evaluations, model.ConstraintEvaluation{
			ConstraintID: c.ID,
			Verdict:      model.VerdictPartiallySatisfied,
			Confidence:   30,
			Feedback:     "Unable to evaluate, critique step failed",
		})
	}
	return model.CritiqueResult{
		ConstraintEvaluations: evaluations,
		ClaimsToVerify:        nil,
		OverallConfidence:     30,
		StrengthsToPreserve:   nil,
	}
}
