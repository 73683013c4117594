package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"thinktwice/internal/llm"
	"thinktwice/internal/model"
)

// Drafter produces the initial candidate response with the constraint set
// embedded in the system prompt
type Drafter struct {
	llm    llm.Service
	logger *zap.Logger
}

// NewDrafter creates a drafter
func NewDrafter(svc llm.Service, logger *zap.Logger) *Drafter {
	return &Drafter{llm: svc, logger: logger}
}

// Draft streams the first response, invoking onChunk per token fragment,
// and returns the full accumulated text
func (d *Drafter) Draft(ctx context.Context, input string, constraints []model.Constraint, onChunk func(string)) (string, error) {
	system := fmt.Sprintf(draftSystemPrompt, formatConstraints(constraints))
	user := fmt.Sprintf(draftUserPrompt, input)

	d.logger.Info("drafting response", zap.Int("constraints", len(constraints)))

	draft, err := d.llm.Stream(ctx, system, user, onChunk)
	if err != nil {
		return "", fmt.Errorf("drafting failed: %w", err)
	}
	return draft, nil
}
