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

// Package storage provides the storage abstraction layer for paperfeed.
//
// This package defines repository interfaces that decouple the durable paper
// store from business logic. The cache, dedup and ingestion packages depend
// only on these interfaces.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return interface types:
//
//	repo, err := badger.NewPaperRepository(backend)  // returns storage.PaperRepository
//
// # Architecture
//
//   - ExistenceChecker: bulk existence lookups used for deduplication
//   - PaperReader: point reads, recency-ordered reads and counts
//   - PaperRepository: full read/write access including batched puts
//   - CheckpointRepository: progress records for resumable batch jobs
//
// # Expiry
//
// Papers carry an expiry enforced by the store itself. Callers never delete
// papers; they simply stop seeing them once the store expires them.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	papers, checkpoints, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
