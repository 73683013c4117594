package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"thinktwice/internal/llm"
	"thinktwice/internal/model"
)

// fakeLLM answers each tool by name from a queue of canned payloads. The
// last payload in a queue repeats once the queue drains, so loop phases can
// be scripted iteration by iteration.
type fakeLLM struct {
	mu        sync.Mutex
	streamOut string
	streamErr error
	tools     map[string][]json.RawMessage
	toolErrs  map[string]error
	calls     map[string]int
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		tools:    make(map[string][]json.RawMessage),
		toolErrs: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeLLM) queue(toolName string, t *testing.T, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload for %s: %v", toolName, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools[toolName] = append(f.tools[toolName], raw)
}

func (f *fakeLLM) callCount(toolName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[toolName]
}

func (f *fakeLLM) Generate(ctx context.Context, system, user string) (string, error) {
	return f.streamOut, f.streamErr
}

func (f *fakeLLM) Stream(ctx context.Context, system, user string, onChunk func(string)) (string, error) {
	if f.streamErr != nil {
		return "", f.streamErr
	}
	if onChunk != nil && f.streamOut != "" {
		onChunk(f.streamOut)
	}
	return f.streamOut, nil
}

func (f *fakeLLM) GenerateStructured(ctx context.Context, system, user string, tool llm.ToolSpec) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[tool.Name]++
	if err := f.toolErrs[tool.Name]; err != nil {
		return nil, err
	}
	queue := f.tools[tool.Name]
	if len(queue) == 0 {
		return nil, nil
	}
	head := queue[0]
	if len(queue) > 1 {
		f.tools[tool.Name] = queue[1:]
	}
	return head, nil
}

// fakeSearch returns fixed results, or nil to signal knowledge-only mode
type fakeSearch struct {
	results []model.SearchResult
	queries []string
}

func (f *fakeSearch) Query(ctx context.Context, q string) []model.SearchResult {
	f.queries = append(f.queries, q)
	return f.results
}
