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

// Package search implements query validation and semantic search over papers.
//
// A Validator asks a completion model whether a free-text query is a
// legitimate request for academic papers and rewrites it for retrieval. It
// fails open: when the model is unavailable or answers with something that
// cannot be parsed, the query is accepted as-is.
//
// A Searcher runs the full pipeline for one request:
//
//	validate -> expand -> embed -> score -> filter & rank -> respond
//
// Only papers carrying an embedding are candidates; there is no tag
// fallback for query-to-paper matching. Results are capped at MaxLimit and
// must score above the relevance threshold. Rejection and embedding failure
// are reported as Response statuses, not errors. Only malformed requests
// (ErrEmptyQuery, ErrQueryTooLong) return an error.
package search
