package model

// ChangeRecord documents one surgical edit made by the refiner
type ChangeRecord struct {
	TargetID string `json:"target_id"` // Constraint or claim ID the change addresses
	Change   string `json:"change"`
	Type     string `json:"type"` // content_addition, factual_correction, language_softening, removal, restructure, source_addition
}

// RefineResult is the refiner's output; RefinedText becomes the next
// iteration's candidate
type RefineResult struct {
	RefinedText     string         `json:"refined_text"`
	ChangesMade     []ChangeRecord `json:"changes_made"`
	ConfidenceAfter int            `json:"confidence_after"` // 0-100
}

// ConvergenceDecision is the loop-control outcome
type ConvergenceDecision string

const (
	Converged            ConvergenceDecision = "converged"
	Continue             ConvergenceDecision = "continue"
	MaxIterationsReached ConvergenceDecision = "max_iterations_reached"
)

// ConvergenceResult is the loop stopping-condition evaluation
type ConvergenceResult struct {
	Decision               ConvergenceDecision `json:"decision"`
	SatisfiedCount         int                 `json:"satisfied_count"`
	TotalCount             int                 `json:"total_count"`
	Confidence             int                 `json:"confidence"` // 0-100
	UnsatisfiedConstraints []string            `json:"unsatisfied_constraints"`
}
