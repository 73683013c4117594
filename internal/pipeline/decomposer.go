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

var decomposeTool = llm.ToolSpec{
	Name:        "submit_decomposition",
	Description: "Submit the structured decomposition of the user's input into constraints",
	Schema: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"main_task": {
				Type:        jsonschema.String,
				Description: "A one-sentence summary of what the user is asking for",
			},
			"constraints": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"id": {
							Type:        jsonschema.String,
							Description: "Unique ID like C1, C2, C3...",
						},
						"type": {
							Type: jsonschema.String,
							Enum: []string{"content", "reasoning", "accuracy", "format", "tone"},
						},
						"description": {Type: jsonschema.String},
						"priority": {
							Type: jsonschema.String,
							Enum: []string{"high", "medium", "low"},
						},
						"verifiable": {Type: jsonschema.Boolean},
					},
					Required: []string{"id", "type", "description", "priority", "verifiable"},
				},
			},
			"implicit_constraints": {
				Type:        jsonschema.Array,
				Items:       &jsonschema.Definition{Type: jsonschema.String},
				Description: "Constraints the user didn't state but would expect",
			},
			"difficulty_estimate": {
				Type: jsonschema.String,
				Enum: []string{"easy", "medium", "hard"},
			},
		},
		Required: []string{"main_task", "constraints", "implicit_constraints", "difficulty_estimate"},
	},
}

// Decomposer breaks user input into the structured constraints the rest of
// the run evaluates against. Constraints are immutable once produced.
type Decomposer struct {
	llm    llm.Service
	logger *zap.Logger
}

// NewDecomposer creates a decomposer
func NewDecomposer(svc llm.Service, logger *zap.Logger) *Decomposer {
	return &Decomposer{llm: svc, logger: logger}
}

// Decompose analyzes the input and produces the constraint set. Any failure
// degrades to a minimal two-constraint fallback rather than aborting the run.
func (d *Decomposer) Decompose(ctx context.Context, input string, mode model.InputMode) model.DecomposeResult {
	var userPrompt string
	switch mode {
	case model.ModeClaim:
		userPrompt = fmt.Sprintf(decomposeClaimPrompt, input)
	case model.ModeURL:
		userPrompt = fmt.Sprintf(decomposeURLPrompt, input)
	default:
		userPrompt = fmt.Sprintf(decomposeQuestionPrompt, input)
	}

	d.logger.Info("decomposing input",
		zap.String("mode", string(mode)),
		zap.Int("length", len(input)),
	)

	raw, err := d.llm.GenerateStructured(ctx, decomposeSystemPrompt, userPrompt, decomposeTool)
	if err != nil {
		d.logger.Error("decomposition failed, using fallback", zap.Error(err))
		return fallbackDecomposition(input)
	}
	if raw == nil {
		d.logger.Warn("decomposition returned no tool call, using fallback")
		return fallbackDecomposition(input)
	}

	var payload struct {
		MainTask            string `json:"main_task"`
		Constraints         []struct {
			ID          string `json:"id"`
			Type        string `json:"type"`
			Description string `json:"description"`
			Priority    string `json:"priority"`
			Verifiable  bool   `json:"verifiable"`
		} `json:"constraints"`
		ImplicitConstraints []string `json:"implicit_constraints"`
		DifficultyEstimate  string   `json:"difficulty_estimate"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		d.logger.Warn("decomposition payload unparseable, using fallback", zap.Error(err))
		return fallbackDecomposition(input)
	}

	constraints := make([]model.Constraint, 0, len(payload.Constraints))
	for _, c := range payload.Constraints {
		constraint := model.Constraint{
			ID:          c.ID,
			Type:        model.ConstraintType(c.Type),
			Description: c.Description,
			Priority:    model.ConstraintPriority(c.Priority),
			Verifiable:  c.Verifiable,
		}
		if constraint.ID == "" || constraint.Description == "" ||
			!constraint.Type.Valid() || !constraint.Priority.Valid() {
			d.logger.Warn("skipping malformed constraint", zap.String("id", c.ID))
			continue
		}
		constraints = append(constraints, constraint)
	}

	if len(constraints) == 0 {
		d.logger.Warn("no valid constraints parsed, using fallback")
		return fallbackDecomposition(input)
	}

	result := model.DecomposeResult{
		MainTask:            payload.MainTask,
		Constraints:         constraints,
		ImplicitConstraints: payload.ImplicitConstraints,
		DifficultyEstimate:  payload.DifficultyEstimate,
	}
	if result.MainTask == "" {
		result.MainTask = truncate(input, 200)
	}
	if result.DifficultyEstimate == "" {
		result.DifficultyEstimate = "medium"
	}

	d.logger.Info("decomposition complete",
		zap.Int("constraints", len(constraints)),
		zap.String("difficulty", result.DifficultyEstimate),
	)
	return result
}

// fallbackDecomposition is the minimal constraint set used when the model
// produces nothing usable. It keeps the run alive with generic accuracy and
// completeness requirements.
func fallbackDecomposition(input string) model.DecomposeResult {
	return model.DecomposeResult{
		MainTask: truncate(input, 200),
		Constraints: []model.Constraint{
			{
				ID:          "C1",
				Type:        model.ConstraintAccuracy,
				Description: "Respond accurately and completely to the user's input",
				Priority:    model.PriorityHigh,
				Verifiable:  true,
			},
			{
				ID:          "C2",
				Type:        model.ConstraintContent,
				Description: "Address all aspects of the user's query",
				Priority:    model.PriorityHigh,
				Verifiable:  true,
			},
		},
		ImplicitConstraints: []string{"Response should be factually accurate"},
		DifficultyEstimate:  "medium",
	}
}
