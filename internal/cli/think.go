package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"thinktwice/internal/config"
	"thinktwice/internal/llm"
	"thinktwice/internal/model"
	"thinktwice/internal/pipeline"
	"thinktwice/internal/scrape"
	"thinktwice/internal/search"
)

var (
	thinkMode     string
	thinkTimeout  time.Duration
	maxIterations int
	gateThreshold int
	singleShot    bool
	showMetrics   bool
)

// thinkCmd represents the think command
var thinkCmd = &cobra.Command{
	Use:   "think <input>",
	Short: "Run one input through the full fact-checking pipeline",
	Long: `Think decomposes the input into constraints, drafts a response,
critiques it, verifies its factual claims on two independent tracks,
refines it selectively, and arbitrates between the draft and the
refinement.

The final answer goes to stdout; phase progress goes to stderr when
--verbose is set.

Example:
  thinktwice think "Is intermittent fasting safe for diabetics?"
  thinktwice think --mode claim "Goldfish have a 3-second memory"
  thinktwice think --mode url https://example.com/article
  thinktwice think --single-shot "Capital of France?"`,
	Args: cobra.ExactArgs(1),
	RunE: runThink,
}

func init() {
	rootCmd.AddCommand(thinkCmd)

	thinkCmd.Flags().StringVar(&thinkMode, "mode", "question", "input mode (question, claim, url)")
	thinkCmd.Flags().DurationVar(&thinkTimeout, "timeout", 5*time.Minute, "overall run timeout")
	thinkCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "override refinement loop cap (1-10)")
	thinkCmd.Flags().IntVar(&gateThreshold, "gate-threshold", 0, "override gate confidence floor (0-100)")
	thinkCmd.Flags().BoolVar(&singleShot, "single-shot", false, "skip the pipeline, stream one plain completion")
	thinkCmd.Flags().BoolVar(&showMetrics, "metrics", false, "print run metrics after the answer")
}

func runThink(cmd *cobra.Command, args []string) error {
	input := args[0]

	mode := model.InputMode(thinkMode)
	if !mode.Valid() {
		return fmt.Errorf("invalid mode %q (expected question, claim or url)", thinkMode)
	}
	if maxIterations != 0 && (maxIterations < 1 || maxIterations > 10) {
		return fmt.Errorf("max-iterations must be between 1 and 10")
	}
	var ov pipeline.Overrides
	ov.MaxIterations = maxIterations
	if cmd.Flags().Changed("gate-threshold") {
		if gateThreshold < 0 || gateThreshold > 100 {
			return fmt.Errorf("gate-threshold must be between 0 and 100")
		}
		ov.GateThreshold = &gateThreshold
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), thinkTimeout)
	defer cancel()

	if singleShot {
		_, err := p.SingleShot(ctx, input, func(chunk string) {
			fmt.Print(chunk)
		})
		fmt.Println()
		return err
	}

	if verbose && !cfg.Search.HasProvider() {
		fmt.Fprintln(os.Stderr, "No search API key configured; claims will be verified against model knowledge only")
	}

	events := p.RunWith(ctx, input, mode, ov)

	var final string
	var metrics *model.RunMetrics
	for ev := range events {
		switch ev.Type {
		case model.EventPhaseStarted:
			if verbose {
				fmt.Fprintf(os.Stderr, "▸ %s\n", ev.Phase)
			}
		case model.EventTokenChunk:
			if verbose {
				fmt.Fprint(os.Stderr, ev.Token)
			}
		case model.EventPhaseCompleted:
			if verbose && ev.Phase == model.PhaseDraft {
				fmt.Fprintln(os.Stderr)
			}
			if verbose && ev.Gate != nil {
				fmt.Fprintf(os.Stderr, "  gate: %s (confidence %d)\n", ev.Gate.Decision, ev.Gate.Confidence)
			}
		case model.EventIterationStarted:
			if verbose {
				fmt.Fprintf(os.Stderr, "── iteration %d ──\n", ev.Iteration)
			}
		case model.EventClaimVerified:
			if verbose && ev.Verification != nil {
				v := ev.Verification
				fmt.Fprintf(os.Stderr, "  claim %s: %s (confidence %d)\n", v.ClaimID, v.CombinedVerdict, v.CombinedConfidence)
			}
		case model.EventTrustDecided:
			if verbose && ev.Trust != nil {
				fmt.Fprintf(os.Stderr, "  trust: %s wins (draft %d vs refined %d)\n",
					ev.Trust.Winner, ev.Trust.DraftScore, ev.Trust.RefinedScore)
			}
		case model.EventRunCompleted:
			final = ev.FinalOutput
			metrics = ev.Metrics
		case model.EventError:
			return fmt.Errorf("pipeline failed during %s: %s", ev.Phase, ev.Error)
		}
	}

	fmt.Println(final)

	if showMetrics && metrics != nil {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Duration: %dms\n", metrics.TotalDurationMS)
		fmt.Fprintf(os.Stderr, "Gate: %s, iterations: %d, winner: %s\n",
			metrics.GateDecision, metrics.IterationsUsed, metrics.TrustWinner)
		fmt.Fprintf(os.Stderr, "Constraints satisfied: %d/%d\n",
			metrics.ConstraintsSatisfied, metrics.ConstraintsTotal)
		fmt.Fprintf(os.Stderr, "Claims: %d verified, %d refuted, %d unclear\n",
			metrics.ClaimsVerified, metrics.ClaimsRefuted, metrics.ClaimsUnclear)
		fmt.Fprintf(os.Stderr, "Confidence: %d -> %d\n",
			metrics.ConfidenceInitial, metrics.ConfidenceFinal)
	}
	return nil
}

// buildPipeline assembles the service graph from configuration
func buildPipeline(cfg config.Config, logger *zap.Logger) (*pipeline.Pipeline, error) {
	svc, err := llm.NewService(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("building LLM service: %w", err)
	}
	searcher := search.NewClient(cfg.Search, logger)
	scraper := scrape.NewScraper(cfg.Scrape, logger)
	return pipeline.New(cfg.Pipeline, svc, searcher, scraper, logger), nil
}
