package model

// ConstraintType categorizes what a constraint demands from a response
type ConstraintType string

const (
	ConstraintContent   ConstraintType = "content"   // Information that must be included
	ConstraintReasoning ConstraintType = "reasoning" // Logical requirements
	ConstraintAccuracy  ConstraintType = "accuracy"  // Factual correctness needs
	ConstraintFormat    ConstraintType = "format"    // Structural requirements
	ConstraintTone      ConstraintType = "tone"      // Communication style
)

// Valid reports whether the type is one of the enumerated values
func (t ConstraintType) Valid() bool {
	switch t {
	case ConstraintContent, ConstraintReasoning, ConstraintAccuracy, ConstraintFormat, ConstraintTone:
		return true
	}
	return false
}

// ConstraintPriority ranks how essential a constraint is
type ConstraintPriority string

const (
	PriorityHigh   ConstraintPriority = "high"
	PriorityMedium ConstraintPriority = "medium"
	PriorityLow    ConstraintPriority = "low"
)

// Valid reports whether the priority is one of the enumerated values
func (p ConstraintPriority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Constraint is a structured requirement that a response must satisfy.
// Constraints are produced once by the decomposer, are immutable for the
// rest of the run, and are referenced by ID everywhere downstream.
type Constraint struct {
	ID          string             `json:"id"` // C1, C2, C3...
	Type        ConstraintType     `json:"type"`
	Description string             `json:"description"`
	Priority    ConstraintPriority `json:"priority"`
	Verifiable  bool               `json:"verifiable"` // Objectively checkable
}

// DecomposeResult is the output of input decomposition
type DecomposeResult struct {
	MainTask            string       `json:"main_task"`
	Constraints         []Constraint `json:"constraints"`
	ImplicitConstraints []string     `json:"implicit_constraints"`
	DifficultyEstimate  string       `json:"difficulty_estimate"` // easy, medium, hard
}

// HighPriorityIDs returns the set of high-priority constraint IDs
func HighPriorityIDs(constraints []Constraint) map[string]bool {
	ids := make(map[string]bool)
	for _, c := range constraints {
		if c.Priority == PriorityHigh {
			ids[c.ID] = true
		}
	}
	return ids
}
