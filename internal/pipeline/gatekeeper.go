package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"thinktwice/internal/llm"
	"thinktwice/internal/model"
)

var gateTool = llm.ToolSpec{
	Name:        "submit_gate_result",
	Description: "Submit the gate evaluation with sub-questions and decision",
	Schema: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"sub_questions": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"constraint_id": {Type: jsonschema.String},
						"question": {
							Type:        jsonschema.String,
							Description: "A diagnostic question that tests whether the draft satisfies this constraint",
						},
						"answer": {
							Type:        jsonschema.String,
							Description: "The answer based on examining the draft",
						},
						"passed": {
							Type:        jsonschema.Boolean,
							Description: "Whether the draft passes this check",
						},
					},
					Required: []string{"constraint_id", "question", "answer", "passed"},
				},
			},
			"gate_decision": {
				Type:        jsonschema.String,
				Enum:        []string{"skip", "refine"},
				Description: "Whether to skip refinement or proceed with it",
			},
			"gate_confidence": {
				Type:        jsonschema.Integer,
				Description: "Overall confidence in the draft quality, 0-100",
			},
			"failing_constraints": {
				Type:        jsonschema.Array,
				Items:       &jsonschema.Definition{Type: jsonschema.String},
				Description: "IDs of constraints that failed the gate check",
			},
		},
		Required: []string{"sub_questions", "gate_decision", "gate_confidence", "failing_constraints"},
	},
}

// Gatekeeper decides whether the draft needs the refinement loop at all.
// The model proposes a decision, but deterministic threshold checks always
// have the last word, and every failure path resolves to refine.
type Gatekeeper struct {
	llm         llm.Service
	threshold   int
	minPassRate float64
	logger      *zap.Logger
}

// NewGatekeeper creates a gatekeeper with the given confidence threshold
// and minimum sub-question pass rate
func NewGatekeeper(svc llm.Service, threshold int, minPassRate float64, logger *zap.Logger) *Gatekeeper {
	return &Gatekeeper{llm: svc, threshold: threshold, minPassRate: minPassRate, logger: logger}
}

// Gate evaluates the draft against the constraints and returns the skip or
// refine decision
func (g *Gatekeeper) Gate(ctx context.Context, draft string, constraints []model.Constraint) model.GateResult {
	evalConstraints := make([]model.Constraint, 0, len(constraints))
	for _, c := range constraints {
		if c.Priority == model.PriorityHigh || c.Priority == model.PriorityMedium {
			evalConstraints = append(evalConstraints, c)
		}
	}
	if len(evalConstraints) == 0 {
		evalConstraints = constraints
	}

	system := fmt.Sprintf(gateSystemPrompt, int(g.minPassRate*100), g.threshold)
	user := fmt.Sprintf(gateUserPrompt, formatConstraints(evalConstraints), draft)

	g.logger.Info("running gate check",
		zap.Int("constraints", len(evalConstraints)),
		zap.Int("threshold", g.threshold),
		zap.Float64("min_pass_rate", g.minPassRate),
	)

	raw, err := g.llm.GenerateStructured(ctx, system, user, gateTool)
	if err != nil {
		g.logger.Error("gate check failed, defaulting to refine", zap.Error(err))
		return fallbackGate(constraints)
	}
	if raw == nil {
		g.logger.Warn("gate returned no tool call, defaulting to refine")
		return fallbackGate(constraints)
	}

	var payload struct {
		SubQuestions []struct {
			ConstraintID string `json:"constraint_id"`
			Question     string `json:"question"`
			Answer       string `json:"answer"`
			Passed       bool   `json:"passed"`
		} `json:"sub_questions"`
		GateDecision       string   `json:"gate_decision"`
		GateConfidence     int      `json:"gate_confidence"`
		FailingConstraints []string `json:"failing_constraints"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		g.logger.Warn("gate payload unparseable, defaulting to refine", zap.Error(err))
		return fallbackGate(constraints)
	}

	subQuestions := make([]model.SubQuestion, 0, len(payload.SubQuestions))
	for _, sq := range payload.SubQuestions {
		if sq.ConstraintID == "" {
			g.logger.Warn("skipping malformed sub-question")
			continue
		}
		subQuestions = append(subQuestions, model.SubQuestion{
			ConstraintID: sq.ConstraintID,
			Question:     sq.Question,
			Answer:       sq.Answer,
			Passed:       sq.Passed,
		})
	}

	decision := model.GateDecision(payload.GateDecision)
	if decision != model.GateSkip && decision != model.GateRefine {
		decision = model.GateRefine
	}
	failing := payload.FailingConstraints

	// The model's decision is advisory. Re-derive it from the sub-question
	// outcomes and our thresholds, always toward refine.
	if len(subQuestions) > 0 {
		passed := 0
		for _, sq := range subQuestions {
			if sq.Passed {
				passed++
			}
		}
		passRate := float64(passed) / float64(len(subQuestions))

		highIDs := model.HighPriorityIDs(constraints)
		highFailed := false
		for _, sq := range subQuestions {
			if highIDs[sq.ConstraintID] && !sq.Passed {
				highFailed = true
				break
			}
		}

		if highFailed || passRate < g.minPassRate || payload.GateConfidence < g.threshold {
			decision = model.GateRefine
		}

		if len(failing) == 0 {
			for _, sq := range subQuestions {
				if !sq.Passed {
					failing = append(failing, sq.ConstraintID)
				}
			}
		}
	}

	result := model.GateResult{
		SubQuestions:       subQuestions,
		Decision:           decision,
		Confidence:         payload.GateConfidence,
		FailingConstraints: failing,
	}

	g.logger.Info("gate decision",
		zap.String("decision", string(result.Decision)),
		zap.Int("confidence", result.Confidence),
		zap.Int("failing", len(result.FailingConstraints)),
	)
	return result
}

// fallbackGate fails closed: every constraint is marked failing and the
// draft goes through the refinement loop
func fallbackGate(constraints []model.Constraint) model.GateResult {
	failing := make([]string, 0, len(constraints))
	for _, c := range constraints {
		failing = append(failing, c.ID)
	}
	return model.GateResult{
		SubQuestions:       nil,
		Decision:           model.GateRefine,
		Confidence:         0,
		FailingConstraints: failing,
	}
}
