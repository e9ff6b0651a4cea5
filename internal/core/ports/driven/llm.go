package driven

import "context"

// LLMService provides grounded answer generation.
// This is an optional service - when nil, queries fall back to a
// deterministic context summary instead of a generated answer.
//
// Implementations may include:
//   - OpenAI-compatible chat endpoints (OpenAI, Groq, LM Studio)
//   - Ollama (local models)
type LLMService interface {
	// Generate produces a completion from a system and user message.
	Generate(ctx context.Context, system, user string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
