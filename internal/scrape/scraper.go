// Package scrape extracts readable article text from URLs. Used only as
// pre-processing for url-mode input before decomposition.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"thinktwice/internal/config"
)

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(` {2,}`)
)

// Scraper fetches a URL and extracts its readable text content
type Scraper struct {
	httpClient *http.Client
	robots     *robotsChecker
	userAgent  string
	maxLen     int
	logger     *zap.Logger
}

// NewScraper creates a scraper from configuration
func NewScraper(cfg config.ScrapeConfig, logger *zap.Logger) *Scraper {
	var robots *robotsChecker
	if cfg.RespectRobots {
		robots = newRobotsChecker(cfg.UserAgent, cfg.Timeout)
	}

	return &Scraper{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		robots:     robots,
		userAgent:  cfg.UserAgent,
		maxLen:     cfg.MaxContentLen,
		logger:     logger,
	}
}

// Extract fetches a URL and returns its readable text, truncated to the
// configured maximum. Fails with an error on invalid or unfetchable URLs;
// the caller surfaces this as a terminal run error.
func (s *Scraper) Extract(ctx context.Context, rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", fmt.Errorf("invalid URL: must start with http:// or https://")
	}

	if s.robots != nil && !s.robots.allowed(ctx, rawURL) {
		return "", fmt.Errorf("robots.txt disallows fetching %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch URL: status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return "", fmt.Errorf("URL does not return HTML content: %s", contentType)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	title := findTitle(doc)
	text := extractReadableText(doc)
	text = multiNewline.ReplaceAllString(text, "\n\n")
	text = multiSpace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if text == "" {
		return "", fmt.Errorf("no readable content at %s", rawURL)
	}

	var out strings.Builder
	if title != "" {
		out.WriteString("Title: " + title + "\n\n")
	}
	out.WriteString(text)

	result := out.String()
	if len(result) > s.maxLen {
		result = result[:s.maxLen] + "\n\n[Content truncated...]"
	}

	s.logger.Debug("extracted article content",
		zap.String("url", rawURL),
		zap.Int("length", len(result)),
	)
	return result, nil
}

// extractReadableText walks the DOM and collects visible text, preferring
// an <article> or <main> element when present
func extractReadableText(doc *html.Node) string {
	if article := findElement(doc, "article"); article != nil {
		return collectText(article)
	}
	if main := findElement(doc, "main"); main != nil {
		return collectText(main)
	}
	if body := findElement(doc, "body"); body != nil {
		return collectText(body)
	}
	return collectText(doc)
}

// collectText gathers text nodes, skipping chrome elements
func collectText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "footer", "header", "aside":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}

// findElement returns the first element with the given tag name
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// findTitle extracts the document title
func findTitle(doc *html.Node) string {
	titleNode := findElement(doc, "title")
	if titleNode == nil || titleNode.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(titleNode.FirstChild.Data)
}
