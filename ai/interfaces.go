package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use and must return
// unit-length vectors so that a dot product equals cosine similarity.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer runs a single prompt through a text-completion model.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete returns the model's text response to prompt, generating at
	// most maxTokens tokens. A rate-limit response from the model is
	// reported as an error wrapping ErrRateLimited.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Completer returns the text completion service.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	Close() error
}
