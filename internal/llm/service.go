// Package llm wraps the completion service used by every pipeline phase.
// All calls are timeout-bounded; a timed-out or transport-failed call gets
// exactly one transparent retry before the error is returned to the phase.
package llm

import (
	"context"
	"encoding/json"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Service is the contract every pipeline phase consumes
type Service interface {
	// Generate returns a plain completion for a system+user prompt pair.
	Generate(ctx context.Context, system, user string) (string, error)

	// Stream produces a completion chunk by chunk, invoking onChunk for each
	// piece of text as it arrives, and returns the full accumulated text.
	// The chunk sequence is finite and cannot be restarted.
	Stream(ctx context.Context, system, user string, onChunk func(string)) (string, error)

	// GenerateStructured forces a tool call matching the given schema and
	// returns the raw tool arguments. A nil result with nil error means the
	// model produced no usable tool call; callers fall back deterministically.
	GenerateStructured(ctx context.Context, system, user string, tool ToolSpec) (json.RawMessage, error)
}

// ToolSpec describes the structured-output schema forced onto the model
type ToolSpec struct {
	Name        string
	Description string
	Schema      *jsonschema.Definition
}
