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

var convergenceTool = llm.ToolSpec{
	Name:        "submit_convergence",
	Description: "Submit convergence evaluation",
	Schema: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"constraint_checks": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"constraint_id": {Type: jsonschema.String},
						"satisfied":     {Type: jsonschema.Boolean},
						"confidence":    {Type: jsonschema.Integer},
					},
					Required: []string{"constraint_id", "satisfied", "confidence"},
				},
			},
			"decision": {
				Type: jsonschema.String,
				Enum: []string{"converged", "continue", "max_iterations_reached"},
			},
			"overall_confidence": {Type: jsonschema.Integer},
		},
		Required: []string{"constraint_checks", "decision", "overall_confidence"},
	},
}

// ConvergenceChecker runs the lightweight per-constraint pass/fail check
// that controls the refinement loop. Like the gate, the model's decision is
// advisory; the iteration cap and threshold rules decide.
type ConvergenceChecker struct {
	llm    llm.Service
	logger *zap.Logger
}

// NewConvergenceChecker creates a convergence checker
func NewConvergenceChecker(svc llm.Service, logger *zap.Logger) *ConvergenceChecker {
	return &ConvergenceChecker{llm: svc, logger: logger}
}

// Check evaluates whether the refined candidate has converged. When the
// iteration cap is hit the decision is forced to max_iterations_reached
// regardless of what the model says; a failed check exits the loop.
func (cc *ConvergenceChecker) Check(ctx context.Context, refined string, constraints []model.Constraint, iteration, maxIterations, threshold int) model.ConvergenceResult {
	forceMax := iteration >= maxIterations
	if forceMax {
		cc.logger.Info("max iterations reached",
			zap.Int("iteration", iteration),
			zap.Int("max", maxIterations),
		)
	}

	measurements := structural.FormatForPrompt(structural.Analyze(refined))

	system := fmt.Sprintf(convergenceSystemPrompt, threshold, iteration, maxIterations)
	user := fmt.Sprintf(convergenceUserPrompt,
		formatConstraintsShort(constraints), refined, iteration, maxIterations) +
		"\n\n" + measurements

	cc.logger.Info("checking convergence",
		zap.Int("iteration", iteration),
		zap.Int("max", maxIterations),
		zap.Int("threshold", threshold),
	)

	exitLoop := model.ConvergenceResult{
		Decision:   model.Converged,
		TotalCount: len(constraints),
		Confidence: 0,
	}

	raw, err := cc.llm.GenerateStructured(ctx, system, user, convergenceTool)
	if err != nil {
		cc.logger.Error("convergence check failed, exiting loop", zap.Error(err))
		return exitLoop
	}
	if raw == nil {
		cc.logger.Warn("convergence check returned no tool call, exiting loop")
		return exitLoop
	}

	var payload struct {
		ConstraintChecks []struct {
			ConstraintID string `json:"constraint_id"`
			Satisfied    bool   `json:"satisfied"`
			Confidence   int    `json:"confidence"`
		} `json:"constraint_checks"`
		Decision          string `json:"decision"`
		OverallConfidence int    `json:"overall_confidence"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		cc.logger.Warn("convergence payload unparseable, exiting loop", zap.Error(err))
		return exitLoop
	}

	satisfied := 0
	var unsatisfied []string
	for _, check := range payload.ConstraintChecks {
		if check.Satisfied {
			satisfied++
		} else {
			unsatisfied = append(unsatisfied, check.ConstraintID)
		}
	}

	var decision model.ConvergenceDecision
	if forceMax {
		decision = model.MaxIterationsReached
	} else {
		decision = model.ConvergenceDecision(payload.Decision)
		switch decision {
		case model.Converged, model.Continue, model.MaxIterationsReached:
		default:
			decision = model.Continue
		}

		// Re-derive the decision from our own rules: converged iff no
		// high-priority constraint is unsatisfied and confidence clears
		// the threshold.
		highIDs := model.HighPriorityIDs(constraints)
		highUnsatisfied := false
		for _, id := range unsatisfied {
			if highIDs[id] {
				highUnsatisfied = true
				break
			}
		}

		if !highUnsatisfied && payload.OverallConfidence >= threshold {
			decision = model.Converged
		} else if highUnsatisfied {
			decision = model.Continue
		}
	}

	result := model.ConvergenceResult{
		Decision:               decision,
		SatisfiedCount:         satisfied,
		TotalCount:             len(payload.ConstraintChecks),
		Confidence:             payload.OverallConfidence,
		UnsatisfiedConstraints: unsatisfied,
	}

	cc.logger.Info("convergence decision",
		zap.String("decision", string(decision)),
		zap.Int("satisfied", satisfied),
		zap.Int("total", result.TotalCount),
		zap.Int("confidence", result.Confidence),
	)
	return result
}
