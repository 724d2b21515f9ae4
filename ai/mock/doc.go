// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Completer,
// and ai.Provider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	vec, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	completer := mock.NewMockCompleter().WithResponse(`{"valid": true}`)
//	embedder := mock.NewMockEmbedder().
//	    WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
//	        return []float32{0.6, 0.8}, nil
//	    })
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: returns deterministic unit vectors based on a text hash
//   - MockCompleter: returns an empty JSON object
//   - MockProvider: aggregates a mock embedder and completer
//
// All mocks are safe for concurrent use.
package mock
