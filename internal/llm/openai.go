package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"thinktwice/internal/config"
)

// Client implements Service against the OpenAI chat completions API.
// Ollama and other OpenAI-compatible endpoints work through a custom
// base URL.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewClient creates a completion client from configuration
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		api:       openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// Generate returns a plain completion
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages(system, user),
		MaxTokens:   c.maxTokens,
		Temperature: 0.3,
	}

	resp, err := c.completeWithRetry(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Stream produces a completion chunk by chunk
func (c *Client) Stream(ctx context.Context, system, user string, onChunk func(string)) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages(system, user),
		MaxTokens:   c.maxTokens,
		Temperature: 0.3,
		Stream:      true,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.api.CreateChatCompletionStream(callCtx, req)
	if err != nil {
		// One transparent retry of this single call, not the phase. The
		// retry gets its own timeout: the first attempt may have failed by
		// exhausting callCtx.
		c.logger.Warn("stream open failed, retrying once", zap.Error(err))
		retryCtx, cancelRetry := context.WithTimeout(ctx, c.timeout)
		defer cancelRetry()
		stream, err = c.api.CreateChatCompletionStream(retryCtx, req)
		if err != nil {
			return "", fmt.Errorf("open completion stream: %w", err)
		}
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("read completion stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onChunk != nil {
			onChunk(delta)
		}
	}

	return full.String(), nil
}

// GenerateStructured forces a tool call and returns its raw arguments
func (c *Client) GenerateStructured(ctx context.Context, system, user string, tool ToolSpec) (json.RawMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages(system, user),
		MaxTokens:   c.maxTokens,
		Temperature: 0.2,
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Schema,
				},
			},
		},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: tool.Name},
		},
	}

	resp, err := c.completeWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name != tool.Name {
			continue
		}
		args := strings.TrimSpace(call.Function.Arguments)
		if args == "" || !json.Valid([]byte(args)) {
			c.logger.Warn("tool call returned invalid JSON", zap.String("tool", tool.Name))
			return nil, nil
		}
		return json.RawMessage(args), nil
	}

	return nil, nil
}

// completeWithRetry issues one chat completion with a timeout and retries
// the call exactly once on failure
func (c *Client) completeWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(callCtx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return resp, fmt.Errorf("chat completion: %w", err)
	}

	c.logger.Warn("chat completion failed, retrying once", zap.Error(err))

	retryCtx, cancelRetry := context.WithTimeout(ctx, c.timeout)
	defer cancelRetry()

	resp, err = c.api.CreateChatCompletion(retryCtx, req)
	if err != nil {
		return resp, fmt.Errorf("chat completion: %w", err)
	}
	return resp, nil
}

func messages(system, user string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}
}
