// Package search provides web search for claim verification with a
// Brave -> Tavily fallback chain. Responses are cached per query and
// outbound calls are rate limited.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"thinktwice/internal/config"
	"thinktwice/internal/model"
)

// Service is the web search contract the verifier consumes
type Service interface {
	// Query returns ordered search results for a query, or nil when no
	// search provider is configured or every provider failed. A nil result
	// signals the caller to fall back to knowledge-only verification.
	Query(ctx context.Context, q string) []model.SearchResult
}

// provider is one concrete search backend
type provider interface {
	name() string
	search(ctx context.Context, q string, n int) ([]model.SearchResult, error)
}

// Client queries web search providers in fallback order
type Client struct {
	providers  []provider
	maxResults int
	cache      *gocache.Cache
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a search client from configuration. With no API keys
// configured the client still constructs; Query then always returns nil.
func NewClient(cfg config.SearchConfig, logger *zap.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var providers []provider
	if cfg.BraveAPIKey != "" {
		providers = append(providers, &braveProvider{apiKey: cfg.BraveAPIKey, client: httpClient})
	}
	if cfg.TavilyAPIKey != "" {
		providers = append(providers, &tavilyProvider{apiKey: cfg.TavilyAPIKey, client: httpClient})
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	return &Client{
		providers:  providers,
		maxResults: cfg.MaxResults,
		cache:      gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		limiter:    rate.NewLimiter(rate.Limit(rps), 5),
		logger:     logger,
	}
}

// Available reports whether any search provider is configured
func (c *Client) Available() bool {
	return len(c.providers) > 0
}

// Query searches for a query through the provider chain
func (c *Client) Query(ctx context.Context, q string) []model.SearchResult {
	if len(c.providers) == 0 {
		return nil
	}

	key := cacheKey(q)
	if cached, found := c.cache.Get(key); found {
		var results []model.SearchResult
		if err := json.Unmarshal(cached.([]byte), &results); err == nil {
			return results
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	for _, p := range c.providers {
		results, err := p.search(ctx, q, c.maxResults)
		if err != nil {
			c.logger.Warn("search provider failed",
				zap.String("provider", p.name()),
				zap.Error(err),
			)
			continue
		}
		if len(results) == 0 {
			continue
		}
		if encoded, err := json.Marshal(results); err == nil {
			c.cache.Set(key, encoded, gocache.DefaultExpiration)
		}
		return results
	}

	return nil
}

// cacheKey hashes a query into a stable cache key
func cacheKey(q string) string {
	hash := sha256.Sum256([]byte(q))
	return "thinktwice:search:v1:" + hex.EncodeToString(hash[:])
}
