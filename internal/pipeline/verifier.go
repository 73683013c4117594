package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"thinktwice/internal/llm"
	"thinktwice/internal/model"
	"thinktwice/internal/search"
)

var webVerdictTool = llm.ToolSpec{
	Name:        "submit_verdict",
	Description: "Submit the verification verdict for a claim",
	Schema: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"verdict": {
				Type: jsonschema.String,
				Enum: []string{"verified", "refuted", "unclear"},
			},
			"explanation": {Type: jsonschema.String},
		},
		Required: []string{"verdict", "explanation"},
	},
}

var selfVerdictTool = llm.ToolSpec{
	Name:        "submit_self_verdict",
	Description: "Submit self-verification verdict with independent derivation",
	Schema: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"derivation": {
				Type:        jsonschema.String,
				Description: "Your independent reasoning and derivation",
			},
			"verdict": {
				Type: jsonschema.String,
				Enum: []string{"verified", "refuted", "unclear"},
			},
		},
		Required: []string{"derivation", "verdict"},
	},
}

// combineVerdicts merges the web and self tracks into a final verdict and
// confidence. selfVerdict is empty when self-verification is disabled.
func combineVerdicts(web, self model.ClaimVerdict) (model.ClaimVerdict, int) {
	if self == "" {
		switch web {
		case model.ClaimVerified, model.ClaimRefuted:
			return web, 65
		default:
			return model.ClaimUnclear, 30
		}
	}

	if web == self {
		switch web {
		case model.ClaimVerified, model.ClaimRefuted:
			return web, 90
		default:
			return model.ClaimUnclear, 40
		}
	}

	switch {
	case web == model.ClaimVerified && self == model.ClaimUnclear:
		return model.ClaimVerified, 60
	case web == model.ClaimRefuted && self == model.ClaimUnclear:
		return model.ClaimRefuted, 60
	case web == model.ClaimUnclear && self == model.ClaimVerified:
		return model.ClaimVerified, 45
	case web == model.ClaimUnclear && self == model.ClaimRefuted:
		return model.ClaimRefuted, 45
	}

	// Verified vs refuted in either direction is a direct conflict
	return model.ClaimUnclear, 25
}

// Verifier fact-checks extracted claims on two tracks: grounding against
// web search snippets, and independent re-derivation from model knowledge.
// Claims are processed sequentially so results can stream out as they land;
// the two tracks of each claim run concurrently.
type Verifier struct {
	llm               llm.Service
	search            search.Service
	selfVerifyEnabled bool
	logger            *zap.Logger
}

// NewVerifier creates a verifier
func NewVerifier(svc llm.Service, searcher search.Service, selfVerifyEnabled bool, logger *zap.Logger) *Verifier {
	return &Verifier{
		llm:               svc,
		search:            searcher,
		selfVerifyEnabled: selfVerifyEnabled,
		logger:            logger,
	}
}

// Verify checks all claims and invokes onResult per completed claim. A
// claim whose verification fails becomes unclear at zero confidence; the
// batch never aborts.
func (v *Verifier) Verify(ctx context.Context, claims []model.ClaimToVerify, onResult func(model.VerificationResult)) []model.VerificationResult {
	if len(claims) == 0 {
		return nil
	}

	v.logger.Info("starting dual verification", zap.Int("claims", len(claims)))

	results := make([]model.VerificationResult, 0, len(claims))
	for _, claim := range claims {
		result, err := v.verifyClaim(ctx, claim)
		if err != nil {
			v.logger.Error("claim verification failed",
				zap.String("claim_id", claim.ID),
				zap.Error(err),
			)
			result = model.VerificationResult{
				ClaimID:            claim.ID,
				Claim:              claim.Claim,
				WebVerdict:         model.ClaimUnclear,
				WebExplanation:     fmt.Sprintf("Verification failed: %v", err),
				CombinedVerdict:    model.ClaimUnclear,
				CombinedConfidence: 0,
				WebVerified:        false,
			}
		}

		v.logger.Info("claim verified",
			zap.String("claim_id", result.ClaimID),
			zap.String("web", string(result.WebVerdict)),
			zap.String("self", string(result.SelfVerdict)),
			zap.String("combined", string(result.CombinedVerdict)),
			zap.Int("confidence", result.CombinedConfidence),
		)

		results = append(results, result)
		if onResult != nil {
			onResult(result)
		}
	}
	return results
}

type webOutcome struct {
	verdict     model.ClaimVerdict
	explanation string
	source      string
	webVerified bool
}

type selfOutcome struct {
	verdict    model.ClaimVerdict
	derivation string
}

func (v *Verifier) verifyClaim(ctx context.Context, claim model.ClaimToVerify) (model.VerificationResult, error) {
	var web webOutcome
	var self selfOutcome

	if v.selfVerifyEnabled {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			web, err = v.webVerify(gctx, claim.Claim)
			return err
		})
		g.Go(func() error {
			// Self-verify failures degrade to unclear rather than failing
			// the claim, since the web track may still be decisive.
			self = v.selfVerify(gctx, claim.Claim)
			return nil
		})
		if err := g.Wait(); err != nil {
			return model.VerificationResult{}, err
		}
	} else {
		var err error
		web, err = v.webVerify(ctx, claim.Claim)
		if err != nil {
			return model.VerificationResult{}, err
		}
	}

	combined, confidence := combineVerdicts(web.verdict, self.verdict)

	return model.VerificationResult{
		ClaimID:            claim.ID,
		Claim:              claim.Claim,
		WebVerdict:         web.verdict,
		WebSource:          web.source,
		WebExplanation:     web.explanation,
		SelfVerdict:        self.verdict,
		SelfDerivation:     self.derivation,
		CombinedVerdict:    combined,
		CombinedConfidence: confidence,
		WebVerified:        web.webVerified,
	}, nil
}

// webVerify checks a claim against search results, or against model
// knowledge alone when search is unavailable or returns nothing
func (v *Verifier) webVerify(ctx context.Context, claim string) (webOutcome, error) {
	results := v.search.Query(ctx, claim)

	var system, user string
	webVerified := len(results) > 0
	if webVerified {
		system = webVerifySystemPrompt
		user = fmt.Sprintf(webVerifyUserPrompt, claim, formatSearchResults(results))
	} else {
		system = knowledgeVerifySystemPrompt
		user = fmt.Sprintf(knowledgeVerifyUserPrompt, claim)
	}

	raw, err := v.llm.GenerateStructured(ctx, system, user, webVerdictTool)
	if err != nil {
		return webOutcome{}, fmt.Errorf("web verification: %w", err)
	}

	outcome := webOutcome{
		verdict:     model.ClaimUnclear,
		explanation: "Unable to evaluate",
		webVerified: webVerified,
	}
	if webVerified {
		outcome.source = results[0].URL
	}

	if raw != nil {
		var payload struct {
			Verdict     string `json:"verdict"`
			Explanation string `json:"explanation"`
		}
		if err := json.Unmarshal(raw, &payload); err == nil {
			if verdict := model.ClaimVerdict(payload.Verdict); verdict.Valid() {
				outcome.verdict = verdict
			}
			if payload.Explanation != "" {
				outcome.explanation = payload.Explanation
			}
		}
	}

	if !webVerified {
		outcome.explanation += " (verified against AI knowledge only, not web sources)"
	}
	return outcome, nil
}

// selfVerify re-derives a claim independently. Never returns an error: any
// failure is an unclear verdict.
func (v *Verifier) selfVerify(ctx context.Context, claim string) selfOutcome {
	user := fmt.Sprintf(selfVerifyUserPrompt, claim)

	raw, err := v.llm.GenerateStructured(ctx, selfVerifySystemPrompt, user, selfVerdictTool)
	if err != nil {
		v.logger.Warn("self-verification failed", zap.Error(err))
		return selfOutcome{verdict: model.ClaimUnclear, derivation: "Self-verification failed"}
	}
	if raw == nil {
		return selfOutcome{verdict: model.ClaimUnclear, derivation: "Self-verification failed"}
	}

	var payload struct {
		Derivation string `json:"derivation"`
		Verdict    string `json:"verdict"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return selfOutcome{verdict: model.ClaimUnclear, derivation: "Self-verification failed"}
	}

	verdict := model.ClaimVerdict(payload.Verdict)
	if !verdict.Valid() {
		verdict = model.ClaimUnclear
	}
	return selfOutcome{verdict: verdict, derivation: payload.Derivation}
}

func formatSearchResults(results []model.SearchResult) string {
	lines := make([]string, 0, len(results))
	for i, r := range results {
		lines = append(lines, fmt.Sprintf("%d. %s\n   URL: %s\n   %s", i+1, r.Title, r.URL, r.Snippet))
	}
	return strings.Join(lines, "\n\n")
}
