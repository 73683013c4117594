package model

// ClaimVerdict is the outcome of fact-checking one claim
type ClaimVerdict string

const (
	ClaimVerified ClaimVerdict = "verified"
	ClaimRefuted  ClaimVerdict = "refuted"
	ClaimUnclear  ClaimVerdict = "unclear"
)

// Valid reports whether the verdict is one of the enumerated values
func (v ClaimVerdict) Valid() bool {
	switch v {
	case ClaimVerified, ClaimRefuted, ClaimUnclear:
		return true
	}
	return false
}

// SearchResult is a single web search hit
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// VerificationResult is the dual-track verification outcome for one claim.
// The web track grounds the claim in search snippets; the self track
// independently re-derives it. The combined verdict follows a fixed policy
// table. Only the last iteration's result set survives to the trust phase.
type VerificationResult struct {
	ClaimID            string       `json:"claim_id"`
	Claim              string       `json:"claim"`
	WebVerdict         ClaimVerdict `json:"web_verdict"`
	WebSource          string       `json:"web_source,omitempty"`
	WebExplanation     string       `json:"web_explanation"`
	SelfVerdict        ClaimVerdict `json:"self_verdict,omitempty"` // Empty when self-verify disabled
	SelfDerivation     string       `json:"self_derivation,omitempty"`
	CombinedVerdict    ClaimVerdict `json:"combined_verdict"`
	CombinedConfidence int          `json:"combined_confidence"` // 0-100
	WebVerified        bool         `json:"web_verified"`        // False when judged from model knowledge only
}
