// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ai provides abstractions for the AI services paperfeed depends on.
//
// The package defines two narrow interfaces and the helpers shared by
// their callers:
//
//   - Embedder: generates unit-length vector embeddings from text
//   - Completer: runs a single-prompt text completion
//   - Provider: aggregates both for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, ...) return
// interface types. Mock constructors return concrete types so tests can
// inject behavior and inspect call counts:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) { ... }
//	count := embedder.CallCount()
//
// # Helpers
//
// Model responses are rarely clean JSON. ExtractJSON finds the first
// balanced object or array in a response, tolerating code fences and
// surrounding prose, and RepairJSON fixes the most common key quoting
// mistakes. RetryWithBackoff retries an operation while a predicate
// such as IsRateLimited accepts its error.
package ai
