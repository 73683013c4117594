package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"thinktwice/internal/config"
	"thinktwice/internal/llm"
	"thinktwice/internal/model"
	"thinktwice/internal/pipeline"
	"thinktwice/internal/scrape"
)

// scriptedLLM pops queued tool payloads by tool name and streams a fixed
// draft. Unqueued tools repeat the last payload so retries stay scripted.
type scriptedLLM struct {
	mu       sync.Mutex
	draft    string
	payloads map[string][]json.RawMessage
}

func (s *scriptedLLM) add(t *testing.T, tool string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", tool, err)
	}
	if s.payloads == nil {
		s.payloads = map[string][]json.RawMessage{}
	}
	s.payloads[tool] = append(s.payloads[tool], raw)
}

func (s *scriptedLLM) Generate(ctx context.Context, system, user string) (string, error) {
	return s.draft, nil
}

func (s *scriptedLLM) Stream(ctx context.Context, system, user string, onChunk func(string)) (string, error) {
	if onChunk != nil {
		onChunk(s.draft)
	}
	return s.draft, nil
}

func (s *scriptedLLM) GenerateStructured(ctx context.Context, system, user string, tool llm.ToolSpec) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.payloads[tool.Name]
	if len(queue) == 0 {
		return nil, nil
	}
	head := queue[0]
	if len(queue) > 1 {
		s.payloads[tool.Name] = queue[1:]
	}
	return head, nil
}

// closeNotifyRecorder adds the CloseNotify method gin's Stream requires;
// httptest.ResponseRecorder alone does not implement http.CloseNotifier.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

type noResultSearch struct{}

func (noResultSearch) Query(ctx context.Context, q string) []model.SearchResult { return nil }

func newTestServer(t *testing.T, fake *scriptedLLM) *Server {
	t.Helper()
	cfg := config.Default()
	scraper := scrape.NewScraper(cfg.Scrape, zap.NewNop())
	p := pipeline.New(cfg.Pipeline, fake, noResultSearch{}, scraper, zap.NewNop())
	return New(cfg.Server, p, zap.NewNop())
}

func fastPathLLM(t *testing.T, draft string) *scriptedLLM {
	t.Helper()
	fake := &scriptedLLM{draft: draft}
	fake.add(t, "submit_decomposition", map[string]any{
		"main_task": "Answer the question",
		"constraints": []map[string]any{
			{"id": "C1", "type": "accuracy", "description": "Answer accurately", "priority": "high", "verifiable": true},
		},
		"implicit_constraints": []string{},
		"difficulty_estimate":  "easy",
	})
	fake.add(t, "submit_gate_result", map[string]any{
		"sub_questions": []map[string]any{
			{"constraint_id": "C1", "question": "Accurate?", "answer": "Yes", "passed": true},
		},
		"gate_decision":       "skip",
		"gate_confidence":     95,
		"failing_constraints": []string{},
	})
	return fake
}

func TestThinkStreamsEvents(t *testing.T) {
	srv := newTestServer(t, fastPathLLM(t, "The sky is blue because of Rayleigh scattering."))

	body := strings.NewReader(`{"input":"Why is the sky blue?","mode":"question"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/think", body)
	req.Header.Set("Content-Type", "application/json")
	rec := newCloseNotifyRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "event:run_completed") {
		t.Errorf("stream missing run_completed event:\n%s", out)
	}
	if !strings.Contains(out, "Rayleigh scattering") {
		t.Error("stream missing the drafted text")
	}
}

func TestThinkRejectsBadMode(t *testing.T) {
	srv := newTestServer(t, fastPathLLM(t, "x"))

	req := httptest.NewRequest(http.MethodPost, "/api/think", strings.NewReader(`{"input":"hi","mode":"poem"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestThinkRejectsOutOfRangeOverrides(t *testing.T) {
	srv := newTestServer(t, fastPathLLM(t, "x"))

	for _, query := range []string{"max_iterations=11", "max_iterations=zero", "gate_threshold=101", "gate_threshold=-1"} {
		req := httptest.NewRequest(http.MethodPost, "/api/think?"+query, strings.NewReader(`{"input":"hi"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, rec.Code)
		}
	}
}

func TestThinkExplicitZeroGateThreshold(t *testing.T) {
	fake := &scriptedLLM{draft: "Short answer."}
	fake.add(t, "submit_decomposition", map[string]any{
		"main_task": "Answer the question",
		"constraints": []map[string]any{
			{"id": "C1", "type": "accuracy", "description": "Answer accurately", "priority": "high", "verifiable": true},
		},
		"implicit_constraints": []string{},
		"difficulty_estimate":  "easy",
	})
	// Low confidence: only a zero threshold lets this skip stand
	fake.add(t, "submit_gate_result", map[string]any{
		"sub_questions": []map[string]any{
			{"constraint_id": "C1", "question": "Accurate?", "answer": "Probably", "passed": true},
		},
		"gate_decision":       "skip",
		"gate_confidence":     10,
		"failing_constraints": []string{},
	})
	srv := newTestServer(t, fake)

	req := httptest.NewRequest(http.MethodPost, "/api/think?gate_threshold=0", strings.NewReader(`{"input":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := newCloseNotifyRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	out := rec.Body.String()
	if !strings.Contains(out, `"fast_path":true`) {
		t.Errorf("explicit zero threshold did not reach the gate:\n%s", out)
	}
}

func TestThinkRejectsMissingInput(t *testing.T) {
	srv := newTestServer(t, fastPathLLM(t, "x"))

	req := httptest.NewRequest(http.MethodPost, "/api/think", strings.NewReader(`{"mode":"question"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSingleShotReturnsJSON(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{draft: "Paris is the capital of France."})

	req := httptest.NewRequest(http.MethodPost, "/api/think/single-shot", strings.NewReader(`{"input":"Capital of France?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Response != "Paris is the capital of France." {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestExamples(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{})

	req := httptest.NewRequest(http.MethodGet, "/api/examples", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Questions []string `json:"questions"`
		Claims    []string `json:"claims"`
		URLs      []string `json:"urls"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding examples: %v", err)
	}
	if len(resp.Questions) != 5 || len(resp.Claims) != 5 {
		t.Errorf("got %d questions, %d claims, want 5 each", len(resp.Questions), len(resp.Claims))
	}
	if len(resp.URLs) != 0 {
		t.Errorf("urls = %v, want empty", resp.URLs)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &scriptedLLM{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
