package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"thinktwice/internal/model"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// braveProvider queries the Brave Search API
type braveProvider struct {
	apiKey string
	client *http.Client
}

func (p *braveProvider) name() string { return "brave" }

func (p *braveProvider) search(ctx context.Context, q string, n int) ([]model.SearchResult, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("count", strconv.Itoa(n))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, braveEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Subscription-Token", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search: status %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	var results []model.SearchResult
	for i, r := range payload.Web.Results {
		if i >= n {
			break
		}
		results = append(results, model.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Description,
		})
	}
	return results, nil
}
