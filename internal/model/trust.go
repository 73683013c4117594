package model

// TrustWinner identifies which candidate the trust arbitration picked
type TrustWinner string

const (
	WinnerDraft   TrustWinner = "draft"
	WinnerRefined TrustWinner = "refined"
	WinnerBlended TrustWinner = "blended"
)

// TrustResult is the final arbitration between the pre-refinement draft and
// the post-refinement candidate. Non-blended winners always carry the
// original verbatim text, never a model-retyped copy.
type TrustResult struct {
	Winner       TrustWinner `json:"winner"`
	Reasoning    string      `json:"reasoning"`
	DraftScore   int         `json:"draft_score"`   // 0-100
	RefinedScore int         `json:"refined_score"` // 0-100
	FinalOutput  string      `json:"final_output"`
	Blended      bool        `json:"blended"`
	BlendNotes   string      `json:"blend_notes,omitempty"`
}
