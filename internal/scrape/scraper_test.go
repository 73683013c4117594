package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"thinktwice/internal/config"
)

func testConfig() config.ScrapeConfig {
	return config.ScrapeConfig{
		Timeout:       5 * time.Second,
		MaxContentLen: 10000,
		UserAgent:     "ThinkTwice/0.1 (+https://github.com/thinktwice)",
	}
}

func TestExtractPrefersArticle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "ThinkTwice/") {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Test Page</title></head><body>
			<nav>Home About Contact</nav>
			<article><p>The actual story text.</p></article>
			<footer>Copyright</footer>
		</body></html>`))
	}))
	defer server.Close()

	s := NewScraper(testConfig(), zap.NewNop())
	out, err := s.Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(out, "Title: Test Page") {
		t.Errorf("output missing title prefix: %q", out)
	}
	if !strings.Contains(out, "The actual story text.") {
		t.Errorf("output missing article text: %q", out)
	}
	if strings.Contains(out, "Home About Contact") || strings.Contains(out, "Copyright") {
		t.Errorf("output contains chrome elements: %q", out)
	}
}

func TestExtractTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("All work and no play makes Jack a dull boy. ", 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><main><p>" + long + "</p></main></body></html>"))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxContentLen = 200
	s := NewScraper(cfg, zap.NewNop())
	out, err := s.Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasSuffix(out, "[Content truncated...]") {
		t.Errorf("long content not truncated: %q", out)
	}
	if len(out) > 200+len("\n\n[Content truncated...]") {
		t.Errorf("output length = %d beyond cap", len(out))
	}
}

func TestExtractRejectsNonHTTPURL(t *testing.T) {
	s := NewScraper(testConfig(), zap.NewNop())
	if _, err := s.Extract(context.Background(), "ftp://example.com/file"); err == nil {
		t.Fatal("expected error for non-http URL")
	}
}

func TestExtractRejectsNonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	s := NewScraper(testConfig(), zap.NewNop())
	if _, err := s.Extract(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for non-HTML content type")
	}
}

func TestExtractRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	s := NewScraper(testConfig(), zap.NewNop())
	if _, err := s.Extract(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestExtractRespectsRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>open content</p></body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig()
	cfg.RespectRobots = true
	s := NewScraper(cfg, zap.NewNop())

	if _, err := s.Extract(context.Background(), server.URL+"/private/page"); err == nil {
		t.Error("expected robots.txt to block /private/")
	}
	if _, err := s.Extract(context.Background(), server.URL+"/public/page"); err != nil {
		t.Errorf("allowed path blocked: %v", err)
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	cases := map[string]string{
		"ThinkTwice/0.1 (+https://github.com/thinktwice)": "ThinkTwice",
		"SimpleBot": "SimpleBot",
		"":          "",
	}
	for in, want := range cases {
		if got := normalizeUserAgent(in); got != want {
			t.Errorf("normalizeUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}
