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

// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// This package implements the ai.Provider interface using the langchaingo
// library to communicate with OpenAI or OpenAI-compatible services (such as
// Ollama, LocalAI, or vLLM).
//
// # Embeddings
//
// Input text is truncated to Config.MaxEmbedChars and newlines are stripped
// before embedding. Returned vectors are normalized to unit length so that
// callers can compare them with a plain dot product.
//
// # Completions
//
// Completions use a single human message at temperature 0. Provider errors
// are mapped through langchaingo's error taxonomy; rate-limit responses are
// returned wrapped in ai.ErrRateLimited so callers can decide to back off.
//
// # Usage
//
//	cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "sparse attention")
//	text, err := provider.Completer().Complete(ctx, "Summarize ...", 200)
package openai
