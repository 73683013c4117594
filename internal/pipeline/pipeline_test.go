package pipeline

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"thinktwice/internal/config"
	"thinktwice/internal/model"
	"thinktwice/internal/scrape"
)

func newTestPipeline(fake *fakeLLM, searcher *fakeSearch) *Pipeline {
	cfg := config.Default()
	scraper := scrape.NewScraper(cfg.Scrape, zap.NewNop())
	return New(cfg.Pipeline, fake, searcher, scraper, zap.NewNop())
}

func collectEvents(t *testing.T, events <-chan model.Event) []model.Event {
	t.Helper()
	var all []model.Event
	for ev := range events {
		all = append(all, ev)
	}
	if len(all) == 0 {
		t.Fatal("no events received")
	}
	return all
}

func queueDecomposition(t *testing.T, fake *fakeLLM) {
	fake.queue("submit_decomposition", t, map[string]any{
		"main_task": "Fact-check the claim",
		"constraints": []map[string]any{
			{"id": "C1", "type": "accuracy", "description": "State whether the claim is true", "priority": "high", "verifiable": true},
		},
		"implicit_constraints": []string{},
		"difficulty_estimate":  "easy",
	})
}

func TestRunFastPath(t *testing.T) {
	fake := newFakeLLM()
	fake.streamOut = "Yes, water boils at 100 degrees Celsius at sea level."
	queueDecomposition(t, fake)
	fake.queue("submit_gate_result", t, map[string]any{
		"sub_questions": []map[string]any{
			{"constraint_id": "C1", "question": "True?", "answer": "Yes", "passed": true},
		},
		"gate_decision":       "skip",
		"gate_confidence":     95,
		"failing_constraints": []string{},
	})

	p := newTestPipeline(fake, &fakeSearch{})
	events := collectEvents(t, p.Run(context.Background(), "Does water boil at 100C at sea level?", model.ModeQuestion))

	last := events[len(events)-1]
	if last.Type != model.EventRunCompleted {
		t.Fatalf("terminal event = %s, want run_completed", last.Type)
	}
	if last.FinalOutput != fake.streamOut {
		t.Errorf("FinalOutput = %q, want the draft verbatim", last.FinalOutput)
	}
	if last.Metrics == nil || !last.Metrics.FastPath {
		t.Error("metrics missing or FastPath = false")
	}
	if last.Metrics.IterationsUsed != 0 {
		t.Errorf("IterationsUsed = %d, want 0 on the fast path", last.Metrics.IterationsUsed)
	}
	if fake.callCount("submit_critique") != 0 {
		t.Error("fast path still ran the critique")
	}
	for _, ev := range events {
		if ev.RunID == "" {
			t.Fatal("event missing run ID")
		}
	}
}

func TestRunFullLoop(t *testing.T) {
	fake := newFakeLLM()
	fake.streamOut = "Water boils at 100 degrees Celsius at sea level."
	queueDecomposition(t, fake)
	fake.queue("submit_gate_result", t, map[string]any{
		"sub_questions": []map[string]any{
			{"constraint_id": "C1", "question": "True?", "answer": "Unsure", "passed": false},
		},
		"gate_decision":       "refine",
		"gate_confidence":     40,
		"failing_constraints": []string{"C1"},
	})
	fake.queue("submit_critique", t, map[string]any{
		"constraint_evaluations": []map[string]any{
			{"constraint_id": "C1", "verdict": "partially_satisfied", "confidence": 60, "feedback": "Needs verification"},
		},
		"claims_to_verify": []map[string]any{
			{"id": "V1", "claim": "Water boils at 100C at sea level", "source_constraint": "C1", "source_quote": "boils at 100"},
		},
		"overall_confidence":    60,
		"strengths_to_preserve": []string{},
	})
	fake.queue("submit_verdict", t, map[string]any{"verdict": "verified", "explanation": "Sources agree."})
	fake.queue("submit_self_verdict", t, map[string]any{"verdict": "verified", "derivation": "Standard physics."})
	fake.queue("submit_refinement", t, map[string]any{
		"refined_response": "Water boils at 100 degrees Celsius at sea level, a verified fact.",
		"changes_made": []map[string]any{
			{"target_id": "V1", "change": "noted verification", "type": "source_addition"},
		},
		"confidence": 88,
	})
	fake.queue("submit_convergence", t, map[string]any{
		"constraint_checks": []map[string]any{
			{"constraint_id": "C1", "satisfied": true, "confidence": 90},
		},
		"decision":           "converged",
		"overall_confidence": 90,
	})
	fake.queue("submit_trust_decision", t, map[string]any{
		"winner":        "refined",
		"reasoning":     "Strictly better.",
		"draft_score":   70,
		"refined_score": 90,
		"final_output":  "ignored retyped copy",
		"blended":       false,
	})

	searcher := &fakeSearch{results: []model.SearchResult{
		{Title: "Boiling", URL: "https://example.org/b", Snippet: "100C at sea level"},
	}}
	p := newTestPipeline(fake, searcher)
	events := collectEvents(t, p.Run(context.Background(), "Water boils at 100C at sea level", model.ModeClaim))

	last := events[len(events)-1]
	if last.Type != model.EventRunCompleted {
		t.Fatalf("terminal event = %s, want run_completed", last.Type)
	}
	if last.FinalOutput != "Water boils at 100 degrees Celsius at sea level, a verified fact." {
		t.Errorf("FinalOutput = %q", last.FinalOutput)
	}

	var claimEvents []model.Event
	sawIterationStart, sawIterationEnd := false, false
	for _, ev := range events {
		switch ev.Type {
		case model.EventClaimVerified:
			claimEvents = append(claimEvents, ev)
		case model.EventIterationStarted:
			sawIterationStart = true
		case model.EventIterationCompleted:
			sawIterationEnd = true
		}
	}
	if !sawIterationStart || !sawIterationEnd {
		t.Error("missing iteration boundary events")
	}
	if len(claimEvents) != 1 {
		t.Fatalf("got %d claim_verified events, want 1", len(claimEvents))
	}
	v := claimEvents[0].Verification
	if v == nil || v.CombinedVerdict != model.ClaimVerified || v.CombinedConfidence != 90 {
		t.Errorf("claim verification = %+v, want verified@90", v)
	}

	m := last.Metrics
	if m.IterationsUsed != 1 || m.ClaimsVerified != 1 || m.ClaimsTotal != 1 {
		t.Errorf("metrics = %+v", m)
	}
	if m.TrustWinner != model.WinnerRefined {
		t.Errorf("TrustWinner = %s, want refined", m.TrustWinner)
	}
	if m.FastPath {
		t.Error("FastPath = true on a refine run")
	}
}

func TestRunWithExplicitZeroGateThreshold(t *testing.T) {
	fake := newFakeLLM()
	fake.streamOut = "A short answer."
	queueDecomposition(t, fake)
	// Every sub-question passes but confidence is far below the configured
	// threshold, so only an explicit zero override keeps the skip
	fake.queue("submit_gate_result", t, map[string]any{
		"sub_questions": []map[string]any{
			{"constraint_id": "C1", "question": "True?", "answer": "Probably", "passed": true},
		},
		"gate_decision":       "skip",
		"gate_confidence":     10,
		"failing_constraints": []string{},
	})

	p := newTestPipeline(fake, &fakeSearch{})
	zero := 0
	events := collectEvents(t, p.RunWith(context.Background(), "Does water boil at 100C at sea level?", model.ModeQuestion, Overrides{GateThreshold: &zero}))

	last := events[len(events)-1]
	if last.Type != model.EventRunCompleted {
		t.Fatalf("terminal event = %s, want run_completed", last.Type)
	}
	if last.Metrics == nil || !last.Metrics.FastPath {
		t.Error("explicit zero threshold did not reach the gatekeeper")
	}
	if fake.callCount("submit_critique") != 0 {
		t.Error("refinement loop ran despite the gate skip")
	}
}

func TestRunDraftFailureEmitsErrorEvent(t *testing.T) {
	fake := newFakeLLM()
	fake.streamErr = errors.New("completion unavailable")
	queueDecomposition(t, fake)

	p := newTestPipeline(fake, &fakeSearch{})
	events := collectEvents(t, p.Run(context.Background(), "anything", model.ModeQuestion))

	last := events[len(events)-1]
	if last.Type != model.EventError {
		t.Fatalf("terminal event = %s, want error", last.Type)
	}
	if last.Phase != model.PhaseDraft {
		t.Errorf("error phase = %s, want draft", last.Phase)
	}
}

func TestRunURLModeScrapeFailureIsTerminal(t *testing.T) {
	fake := newFakeLLM()

	p := newTestPipeline(fake, &fakeSearch{})
	events := collectEvents(t, p.Run(context.Background(), "not-a-valid-url", model.ModeURL))

	last := events[len(events)-1]
	if last.Type != model.EventError || last.Phase != model.PhaseExtract {
		t.Fatalf("terminal event = %s/%s, want error/extract", last.Type, last.Phase)
	}
	if fake.callCount("submit_decomposition") != 0 {
		t.Error("pipeline continued past a failed extraction")
	}
}

func TestSingleShotStreams(t *testing.T) {
	fake := newFakeLLM()
	fake.streamOut = "plain answer"

	p := newTestPipeline(fake, &fakeSearch{})
	var streamed string
	out, err := p.SingleShot(context.Background(), "question", func(chunk string) {
		streamed += chunk
	})
	if err != nil {
		t.Fatalf("SingleShot returned error: %v", err)
	}
	if out != "plain answer" || streamed != "plain answer" {
		t.Errorf("out = %q streamed = %q", out, streamed)
	}
}
