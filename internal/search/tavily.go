package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"thinktwice/internal/model"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// tavilyProvider queries the Tavily search API
type tavilyProvider struct {
	apiKey string
	client *http.Client
}

func (p *tavilyProvider) name() string { return "tavily" }

func (p *tavilyProvider) search(ctx context.Context, q string, n int) ([]model.SearchResult, error) {
	body, err := json.Marshal(map[string]any{
		"query":       q,
		"max_results": n,
		"api_key":     p.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily search: status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	var results []model.SearchResult
	for i, r := range payload.Results {
		if i >= n {
			break
		}
		results = append(results, model.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}
	return results, nil
}
