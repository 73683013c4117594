package model

// GateDecision is the outcome of the quality gate check
type GateDecision string

const (
	GateSkip   GateDecision = "skip"   // Draft is good enough, bypass the refinement loop
	GateRefine GateDecision = "refine" // Draft needs the critique/verify/refine loop
)

// SubQuestion is a diagnostic question generated per constraint during the
// gate check. Ephemeral: consumed only by the gate decision.
type SubQuestion struct {
	ConstraintID string `json:"constraint_id"`
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	Passed       bool   `json:"passed"`
}

// GateResult is the gate check outcome with its supporting sub-questions
type GateResult struct {
	SubQuestions       []SubQuestion `json:"sub_questions"`
	Decision           GateDecision  `json:"gate_decision"`
	Confidence         int           `json:"gate_confidence"` // 0-100
	FailingConstraints []string      `json:"failing_constraints"`
}
