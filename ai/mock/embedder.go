package mock

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/poiesic/paperfeed/ai"
)

// Dimensions is the size of vectors produced by the default embedder.
const Dimensions = 64

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	mu sync.RWMutex

	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, each text is embedded via EmbedText's behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	callCount atomic.Int64
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// WithEmbedTextFunc sets the single-text behavior and returns the mock.
func (m *MockEmbedder) WithEmbedTextFunc(fn func(ctx context.Context, text string) ([]float32, error)) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedTextFunc = fn
	return m
}

// WithEmbedTextsFunc sets the batch behavior and returns the mock.
func (m *MockEmbedder) WithEmbedTextsFunc(fn func(ctx context.Context, texts []string) ([][]float32, error)) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedTextsFunc = fn
	return m
}

// EmbedText generates a deterministic embedding based on text hash.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	m.mu.RLock()
	fn := m.EmbedTextFunc
	m.mu.RUnlock()
	if fn != nil {
		return fn(ctx, text)
	}
	return DeterministicVector(text, Dimensions), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)

	m.mu.RLock()
	batchFn, singleFn := m.EmbedTextsFunc, m.EmbedTextFunc
	m.mu.RUnlock()
	if batchFn != nil {
		return batchFn(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if singleFn != nil {
			v, err := singleFn(ctx, text)
			if err != nil {
				return nil, err
			}
			vectors[i] = v
			continue
		}
		vectors[i] = DeterministicVector(text, Dimensions)
	}
	return vectors, nil
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount.Store(0)
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// DeterministicVector creates a deterministic unit-length vector from text.
// The same text always produces the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := range vector {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return ai.NormalizeVector(vector)
}
