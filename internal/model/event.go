package model

// InputMode selects how the pipeline treats the user input
type InputMode string

const (
	ModeQuestion InputMode = "question"
	ModeClaim    InputMode = "claim"
	ModeURL      InputMode = "url"
)

// Valid reports whether the mode is one of the enumerated values
func (m InputMode) Valid() bool {
	switch m {
	case ModeQuestion, ModeClaim, ModeURL:
		return true
	}
	return false
}

// Phase names a pipeline stage
type Phase string

const (
	PhaseExtract     Phase = "extract"
	PhaseDecompose   Phase = "decompose"
	PhaseDraft       Phase = "draft"
	PhaseGate        Phase = "gate"
	PhaseCritique    Phase = "critique"
	PhaseVerify      Phase = "verify"
	PhaseRefine      Phase = "refine"
	PhaseConvergence Phase = "convergence"
	PhaseTrust       Phase = "trust"
)

// EventType discriminates pipeline stream events
type EventType string

const (
	EventPhaseStarted       EventType = "phase_started"
	EventTokenChunk         EventType = "token_chunk"
	EventPhaseCompleted     EventType = "phase_completed"
	EventClaimVerified      EventType = "claim_verified"
	EventConstraintVerdict  EventType = "constraint_verdict"
	EventIterationStarted   EventType = "iteration_started"
	EventIterationCompleted EventType = "iteration_completed"
	EventTrustDecided       EventType = "trust_decided"
	EventRunCompleted       EventType = "run_completed"
	EventError              EventType = "error"
)

// Event is one entry in the ordered stream the orchestrator produces.
// Type discriminates which payload pointers are set; all others are nil.
// The stream always terminates with a run_completed or error event.
type Event struct {
	RunID      string    `json:"run_id"`
	Type       EventType `json:"type"`
	Phase      Phase     `json:"phase,omitempty"`
	Iteration  int       `json:"iteration,omitempty"`
	Token      string    `json:"token,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`

	Decomposition *DecomposeResult      `json:"decomposition,omitempty"`
	Draft         string                `json:"draft,omitempty"`
	Gate          *GateResult           `json:"gate,omitempty"`
	Critique      *CritiqueResult       `json:"critique,omitempty"`
	Evaluation    *ConstraintEvaluation `json:"evaluation,omitempty"`
	Verification  *VerificationResult   `json:"verification,omitempty"`
	Refinement    *RefineResult         `json:"refinement,omitempty"`
	Convergence   *ConvergenceResult    `json:"convergence,omitempty"`
	Trust         *TrustResult          `json:"trust,omitempty"`
	Metrics       *RunMetrics           `json:"metrics,omitempty"`
	FinalOutput   string                `json:"final_output,omitempty"`
}

// RunMetrics aggregates a completed run
type RunMetrics struct {
	TotalDurationMS      int64            `json:"total_duration_ms"`
	PhaseDurationsMS     map[string]int64 `json:"phase_durations_ms"`
	GateDecision         GateDecision     `json:"gate_decision"`
	IterationsUsed       int              `json:"iterations_used"`
	TrustWinner          TrustWinner      `json:"trust_winner"`
	ConstraintsTotal     int              `json:"constraints_total"`
	ConstraintsSatisfied int              `json:"constraints_satisfied"`
	ClaimsTotal          int              `json:"claims_total"`
	ClaimsVerified       int              `json:"claims_verified"`
	ClaimsRefuted        int              `json:"claims_refuted"`
	ClaimsUnclear        int              `json:"claims_unclear"`
	ConfidenceInitial    int              `json:"confidence_initial"`
	ConfidenceFinal      int              `json:"confidence_final"`
	FastPath             bool             `json:"fast_path"` // Gate skipped the refinement loop
}
