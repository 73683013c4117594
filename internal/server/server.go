// Package server exposes the pipeline over HTTP. Full runs stream their
// event sequence as SSE; single-shot completions return one JSON body.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thinktwice/internal/config"
	"thinktwice/internal/model"
	"thinktwice/internal/pipeline"
)

// Server is the HTTP surface over the pipeline
type Server struct {
	cfg      config.ServerConfig
	pipeline *pipeline.Pipeline
	engine   *gin.Engine
	logger   *zap.Logger
}

// New builds the server and registers all routes
func New(cfg config.ServerConfig, p *pipeline.Pipeline, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{cfg: cfg, pipeline: p, engine: engine, logger: logger}

	engine.GET("/healthz", s.handleHealth)
	api := engine.Group("/api")
	{
		api.POST("/think", s.handleThink)
		api.POST("/think/single-shot", s.handleSingleShot)
		api.GET("/examples", s.handleExamples)
	}
	return s
}

// Handler returns the underlying HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}

type thinkRequest struct {
	Input string `json:"input" binding:"required"`
	Mode  string `json:"mode"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleThink runs the full pipeline and streams its events as SSE, one
// event per pipeline event, named by the event type
func (s *Server) handleThink(c *gin.Context) {
	var req thinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := model.InputMode(req.Mode)
	if req.Mode == "" {
		mode = model.ModeQuestion
	}
	if !mode.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid mode %q", req.Mode)})
		return
	}

	var ov pipeline.Overrides
	if v, set, err := intQuery(c, "max_iterations", 1, 10); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	} else if set {
		ov.MaxIterations = v
	}
	if v, set, err := intQuery(c, "gate_threshold", 0, 100); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	} else if set {
		ov.GateThreshold = &v
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	events := s.pipeline.RunWith(c.Request.Context(), req.Input, mode, ov)
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(ev.Type), ev)
		return true
	})
}

// handleSingleShot runs one plain completion without the pipeline
func (s *Server) handleSingleShot(c *gin.Context) {
	var req thinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := s.pipeline.SingleShot(c.Request.Context(), req.Input, nil)
	if err != nil {
		s.logger.Error("single-shot failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "completion failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": out})
}

// handleExamples returns curated example prompts per input mode
func (s *Server) handleExamples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"questions": []string{
			"Is intermittent fasting safe for people with diabetes?",
			"Explain how mRNA vaccines work. Are there long-term risks?",
			"What causes the northern lights and how far south can they be seen?",
			"How does blockchain technology actually work?",
			"What are the real environmental impacts of electric vehicles?",
		},
		"claims": []string{
			"Humans only use 10% of their brain",
			"The Great Wall of China is visible from space",
			"Coffee stunts your growth",
			"Napoleon Bonaparte was unusually short",
			"Goldfish have a 3-second memory",
		},
		"urls": []string{},
	})
}

// intQuery parses an optional bounded integer query parameter; set reports
// whether the parameter was present
func intQuery(c *gin.Context, name string, min, max int) (v int, set bool, err error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false, nil
	}
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return 0, false, fmt.Errorf("%s must be an integer", name)
	}
	if v < min || v > max {
		return 0, false, fmt.Errorf("%s must be between %d and %d", name, min, max)
	}
	return v, true, nil
}
