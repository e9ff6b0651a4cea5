package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations must return L2-normalized vectors of a fixed
// dimension. Embeddings are pure functions of the input text and the
// model identity, so callers may cache. The model must never change
// for an existing index without a full reindex.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - Local models via inference servers
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The result
	// length equals the input length and positions correspond; partial
	// failure is not permitted.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// This is determined by the model and must match the vector index
	// configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}
