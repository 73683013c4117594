package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thinktwice/internal/config"
	"thinktwice/internal/llm"
	"thinktwice/internal/model"
	"thinktwice/internal/scrape"
	"thinktwice/internal/search"
	"thinktwice/internal/structural"
)

// Pipeline orchestrates the full run: decompose, draft, gate, the
// critique/verify/refine/converge loop, and trust arbitration. One Pipeline
// is safe for concurrent runs; all per-run state lives on the stack.
type Pipeline struct {
	cfg         config.PipelineConfig
	llm         llm.Service
	decomposer  *Decomposer
	drafter     *Drafter
	critic      *Critic
	verifier    *Verifier
	refiner     *Refiner
	convergence *ConvergenceChecker
	truster     *Truster
	enforcer    *structural.Enforcer
	scraper     *scrape.Scraper
	logger      *zap.Logger
}

// New wires all phase components around the shared services
func New(cfg config.PipelineConfig, svc llm.Service, searcher search.Service, scraper *scrape.Scraper, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		llm:         svc,
		decomposer:  NewDecomposer(svc, logger),
		drafter:     NewDrafter(svc, logger),
		critic:      NewCritic(svc, logger),
		verifier:    NewVerifier(svc, searcher, cfg.SelfVerifyEnabled, logger),
		refiner:     NewRefiner(svc, logger),
		convergence: NewConvergenceChecker(svc, logger),
		truster:     NewTruster(svc, cfg.TrustBlendEnabled, logger),
		enforcer:    structural.NewEnforcer(logger),
		scraper:     scraper,
		logger:      logger,
	}
}

// Overrides are per-run knobs. A zero MaxIterations keeps the configured
// default; GateThreshold is a pointer so an explicit 0 (gate always skips
// on confidence) stays distinguishable from "not set".
type Overrides struct {
	MaxIterations int
	GateThreshold *int
}

// Run executes the pipeline and returns the event stream. The channel is
// closed after a terminal run_completed or error event; the caller owns
// cancellation through ctx.
func (p *Pipeline) Run(ctx context.Context, input string, mode model.InputMode) <-chan model.Event {
	return p.RunWith(ctx, input, mode, Overrides{})
}

// RunWith executes the pipeline with per-run overrides applied on top of
// the configured defaults
func (p *Pipeline) RunWith(ctx context.Context, input string, mode model.InputMode, ov Overrides) <-chan model.Event {
	cfg := p.cfg
	if ov.MaxIterations > 0 {
		cfg.MaxIterations = ov.MaxIterations
	}
	if ov.GateThreshold != nil {
		cfg.GateThreshold = *ov.GateThreshold
	}

	events := make(chan model.Event, 32)
	go func() {
		defer close(events)
		p.run(ctx, cfg, input, mode, events)
	}()
	return events
}

// SingleShot bypasses the pipeline entirely: one plain streamed completion
// for side-by-side comparison against a full run
func (p *Pipeline) SingleShot(ctx context.Context, input string, onChunk func(string)) (string, error) {
	out, err := p.llm.Stream(ctx, "You are a helpful, knowledgeable assistant.", input, onChunk)
	if err != nil {
		return "", fmt.Errorf("single-shot completion: %w", err)
	}
	return out, nil
}

type runEmitter struct {
	ctx    context.Context
	runID  string
	events chan<- model.Event
}

// emit never blocks past cancellation: once the consumer is gone events
// are dropped and the run winds down on its own ctx errors
func (e *runEmitter) emit(ev model.Event) {
	ev.RunID = e.runID
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
	}
}

func (e *runEmitter) phaseStarted(phase model.Phase, iteration int) {
	e.emit(model.Event{Type: model.EventPhaseStarted, Phase: phase, Iteration: iteration})
}

func (p *Pipeline) run(ctx context.Context, cfg config.PipelineConfig, input string, mode model.InputMode, events chan<- model.Event) {
	runID := uuid.NewString()
	em := &runEmitter{ctx: ctx, runID: runID, events: events}
	start := time.Now()
	phaseDurations := make(map[string]int64)

	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("pipeline run starting", zap.String("mode", string(mode)), zap.Int("input_length", len(input)))

	timePhase := func(phase model.Phase, started time.Time) int64 {
		ms := time.Since(started).Milliseconds()
		phaseDurations[string(phase)] += ms
		return ms
	}

	// URL mode replaces the input with the scraped article before anything
	// else runs. A failed scrape is terminal.
	if mode == model.ModeURL {
		phaseStart := time.Now()
		em.phaseStarted(model.PhaseExtract, 0)

		extracted, err := p.scraper.Extract(ctx, input)
		if err != nil {
			logger.Error("extraction failed", zap.Error(err))
			em.emit(model.Event{
				Type:  model.EventError,
				Phase: model.PhaseExtract,
				Error: fmt.Sprintf("content extraction failed: %v", err),
			})
			return
		}
		input = "Analyze and fact-check this article:\n\n" + extracted
		em.emit(model.Event{
			Type:       model.EventPhaseCompleted,
			Phase:      model.PhaseExtract,
			DurationMS: timePhase(model.PhaseExtract, phaseStart),
		})
	}

	// Decompose
	phaseStart := time.Now()
	em.phaseStarted(model.PhaseDecompose, 0)
	decomposition := p.decomposer.Decompose(ctx, input, mode)
	em.emit(model.Event{
		Type:          model.EventPhaseCompleted,
		Phase:         model.PhaseDecompose,
		DurationMS:    timePhase(model.PhaseDecompose, phaseStart),
		Decomposition: &decomposition,
	})
	constraints := decomposition.Constraints

	// Draft
	phaseStart = time.Now()
	em.phaseStarted(model.PhaseDraft, 0)
	draft, err := p.drafter.Draft(ctx, input, constraints, func(chunk string) {
		em.emit(model.Event{Type: model.EventTokenChunk, Phase: model.PhaseDraft, Token: chunk})
	})
	if err != nil {
		logger.Error("drafting failed", zap.Error(err))
		em.emit(model.Event{
			Type:  model.EventError,
			Phase: model.PhaseDraft,
			Error: fmt.Sprintf("drafting failed: %v", err),
		})
		return
	}
	em.emit(model.Event{
		Type:       model.EventPhaseCompleted,
		Phase:      model.PhaseDraft,
		DurationMS: timePhase(model.PhaseDraft, phaseStart),
		Draft:      draft,
	})

	// Gate, with the per-run threshold
	phaseStart = time.Now()
	em.phaseStarted(model.PhaseGate, 0)
	gatekeeper := NewGatekeeper(p.llm, cfg.GateThreshold, cfg.GateMinPassRate, logger)
	gate := gatekeeper.Gate(ctx, draft, constraints)
	em.emit(model.Event{
		Type:       model.EventPhaseCompleted,
		Phase:      model.PhaseGate,
		DurationMS: timePhase(model.PhaseGate, phaseStart),
		Gate:       &gate,
	})

	candidate := draft
	failing := gate.FailingConstraints
	iterationsUsed := 0
	confidenceInitial := gate.Confidence
	confidenceFinal := gate.Confidence
	var verifications []model.VerificationResult
	claimTally := struct{ total, verified, refuted, unclear int }{}
	satisfiedFinal := len(constraints) // Gate skip means every check passed

	if gate.Decision == model.GateRefine {
		satisfiedFinal = 0
		for iteration := 1; iteration <= cfg.MaxIterations; iteration++ {
			iterationsUsed = iteration
			em.emit(model.Event{Type: model.EventIterationStarted, Iteration: iteration})

			// Critique
			phaseStart = time.Now()
			em.phaseStarted(model.PhaseCritique, iteration)
			critique := p.critic.Critique(ctx, candidate, constraints, failing, input)
			if iteration == 1 {
				confidenceInitial = critique.OverallConfidence
			}
			for i := range critique.ConstraintEvaluations {
				em.emit(model.Event{
					Type:       model.EventConstraintVerdict,
					Phase:      model.PhaseCritique,
					Iteration:  iteration,
					Evaluation: &critique.ConstraintEvaluations[i],
				})
			}
			em.emit(model.Event{
				Type:       model.EventPhaseCompleted,
				Phase:      model.PhaseCritique,
				Iteration:  iteration,
				DurationMS: timePhase(model.PhaseCritique, phaseStart),
				Critique:   &critique,
			})

			// Verify
			phaseStart = time.Now()
			em.phaseStarted(model.PhaseVerify, iteration)
			verifications = p.verifier.Verify(ctx, critique.ClaimsToVerify, func(result model.VerificationResult) {
				r := result
				em.emit(model.Event{
					Type:         model.EventClaimVerified,
					Phase:        model.PhaseVerify,
					Iteration:    iteration,
					Verification: &r,
				})
			})
			em.emit(model.Event{
				Type:       model.EventPhaseCompleted,
				Phase:      model.PhaseVerify,
				Iteration:  iteration,
				DurationMS: timePhase(model.PhaseVerify, phaseStart),
			})

			// Refine, then mechanically repair what the model cannot count
			phaseStart = time.Now()
			em.phaseStarted(model.PhaseRefine, iteration)
			refinement := p.refiner.Refine(ctx, candidate, critique, verifications, constraints)
			if cfg.StructuralEnforce {
				refinement.RefinedText = p.enforcer.Enforce(refinement.RefinedText, constraints, input)
			}
			candidate = refinement.RefinedText
			confidenceFinal = refinement.ConfidenceAfter
			em.emit(model.Event{
				Type:       model.EventPhaseCompleted,
				Phase:      model.PhaseRefine,
				Iteration:  iteration,
				DurationMS: timePhase(model.PhaseRefine, phaseStart),
				Refinement: &refinement,
			})

			// Converge
			phaseStart = time.Now()
			em.phaseStarted(model.PhaseConvergence, iteration)
			convergence := p.convergence.Check(ctx, candidate, constraints, iteration, cfg.MaxIterations, cfg.ConvergenceThreshold)
			em.emit(model.Event{
				Type:        model.EventPhaseCompleted,
				Phase:       model.PhaseConvergence,
				Iteration:   iteration,
				DurationMS:  timePhase(model.PhaseConvergence, phaseStart),
				Convergence: &convergence,
			})
			em.emit(model.Event{Type: model.EventIterationCompleted, Iteration: iteration})

			satisfiedFinal = convergence.SatisfiedCount
			failing = convergence.UnsatisfiedConstraints
			if convergence.Confidence > 0 {
				confidenceFinal = convergence.Confidence
			}
			if convergence.Decision != model.Continue {
				break
			}
		}

		for _, v := range verifications {
			claimTally.total++
			switch v.CombinedVerdict {
			case model.ClaimVerified:
				claimTally.verified++
			case model.ClaimRefuted:
				claimTally.refuted++
			default:
				claimTally.unclear++
			}
		}
	}

	// Trust
	phaseStart = time.Now()
	em.phaseStarted(model.PhaseTrust, 0)
	trust := p.truster.TrustAndRank(ctx, draft, candidate, constraints, verifications)
	em.emit(model.Event{
		Type:       model.EventTrustDecided,
		Phase:      model.PhaseTrust,
		DurationMS: timePhase(model.PhaseTrust, phaseStart),
		Trust:      &trust,
	})

	metrics := model.RunMetrics{
		TotalDurationMS:      time.Since(start).Milliseconds(),
		PhaseDurationsMS:     phaseDurations,
		GateDecision:         gate.Decision,
		IterationsUsed:       iterationsUsed,
		TrustWinner:          trust.Winner,
		ConstraintsTotal:     len(constraints),
		ConstraintsSatisfied: satisfiedFinal,
		ClaimsTotal:          claimTally.total,
		ClaimsVerified:       claimTally.verified,
		ClaimsRefuted:        claimTally.refuted,
		ClaimsUnclear:        claimTally.unclear,
		ConfidenceInitial:    confidenceInitial,
		ConfidenceFinal:      confidenceFinal,
		FastPath:             gate.Decision == model.GateSkip,
	}

	logger.Info("pipeline run complete",
		zap.Int64("duration_ms", metrics.TotalDurationMS),
		zap.Int("iterations", metrics.IterationsUsed),
		zap.String("winner", string(metrics.TrustWinner)),
		zap.Bool("fast_path", metrics.FastPath),
	)

	em.emit(model.Event{
		Type:        model.EventRunCompleted,
		Metrics:     &metrics,
		FinalOutput: trust.FinalOutput,
	})
}
