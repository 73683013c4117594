package model

// ConstraintVerdict grades how well the candidate satisfies one constraint
type ConstraintVerdict string

const (
	VerdictSatisfied          ConstraintVerdict = "satisfied"
	VerdictPartiallySatisfied ConstraintVerdict = "partially_satisfied"
	VerdictViolated           ConstraintVerdict = "violated"
)

// Valid reports whether the verdict is one of the enumerated values
func (v ConstraintVerdict) Valid() bool {
	switch v {
	case VerdictSatisfied, VerdictPartiallySatisfied, VerdictViolated:
		return true
	}
	return false
}

// ConstraintEvaluation is a per-constraint verdict from the critic. Produced
// fresh each loop iteration; the prior iteration's evaluations are discarded.
type ConstraintEvaluation struct {
	ConstraintID  string            `json:"constraint_id"`
	Verdict       ConstraintVerdict `json:"verdict"`
	Confidence    int               `json:"confidence"` // 0-100
	Feedback      string            `json:"feedback,omitempty"`
	EvidenceQuote string            `json:"evidence_quote,omitempty"`
}

// ClaimToVerify is an atomic factual assertion extracted from the candidate,
// consumed by the verifier within the same iteration
type ClaimToVerify struct {
	ID               string `json:"id"` // V1, V2, V3...
	Claim            string `json:"claim"`
	SourceConstraint string `json:"source_constraint"`
	SourceQuote      string `json:"source_quote"`
}

// CritiqueResult is the critic's full output for one iteration
type CritiqueResult struct {
	ConstraintEvaluations []ConstraintEvaluation `json:"constraint_evaluations"`
	ClaimsToVerify        []ClaimToVerify        `json:"claims_to_verify"`
	OverallConfidence     int                    `json:"overall_confidence"` // 0-100
	StrengthsToPreserve   []string               `json:"strengths_to_preserve"`
}
