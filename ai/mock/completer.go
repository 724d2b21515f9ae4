package mock

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockCompleter is a test double for ai.Completer.
type MockCompleter struct {
	mu sync.RWMutex

	// CompleteFunc is called by Complete if set.
	// If nil, Response is returned.
	CompleteFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Response is the canned reply used when CompleteFunc is nil.
	Response string

	prompts   []string
	callCount atomic.Int64
}

// NewMockCompleter creates a mock completer that answers with an empty JSON object.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{Response: "{}"}
}

// WithResponse sets a canned reply and returns the mock.
func (m *MockCompleter) WithResponse(response string) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Response = response
	return m
}

// WithCompleteFunc sets custom behavior and returns the mock.
func (m *MockCompleter) WithCompleteFunc(fn func(ctx context.Context, prompt string, maxTokens int) (string, error)) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = fn
	return m
}

// Complete records the prompt and returns the injected behavior's result.
func (m *MockCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.callCount.Add(1)

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn, response := m.CompleteFunc, m.Response
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, maxTokens)
	}
	return response, nil
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockCompleter) Prompts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.prompts...)
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears recorded calls and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount.Store(0)
	m.prompts = nil
	m.CompleteFunc = nil
	m.Response = "{}"
}
