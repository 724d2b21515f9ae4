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

package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/paperfeed/ai"
	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/enrich"
	"github.com/poiesic/paperfeed/ingestion"
	"github.com/poiesic/paperfeed/storage"
)

var (
	// ErrRepositoryRequired is returned when no paper repository is given.
	ErrRepositoryRequired = errors.New("paper repository required")

	// ErrEmbedderRequired is returned when no embedder is given.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrCountMismatch is returned when the embedder returns a different
	// number of vectors than texts.
	ErrCountMismatch = errors.New("embedding count mismatch")
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of papers embedded per call
	BatchSize int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// MissingOnly restricts the run to papers without an embedding
	MissingOnly bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:  50,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// Result summarizes a reembedding run.
type Result struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
	Batches  int `json:"batches"`
}

// Reembedder regenerates embeddings for every stored paper.
type Reembedder struct {
	repo     storage.PaperRepository
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr), may be nil
func NewReembedder(repo storage.PaperRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0, got %d", config.BatchSize)
	}
	if config.MaxRetries <= 0 {
		return nil, ai.ErrInvalidMaxAttempts
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:     repo,
		embedder: embedder,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "reembedder"),
	}, nil
}

// Run embeds stored papers in batches and writes them back. A failed batch
// aborts the run; batches already written stay written.
func (r *Reembedder) Run(ctx context.Context) (*Result, error) {
	total, err := r.repo.CountPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count papers: %w", err)
	}
	result := &Result{}
	if total == 0 {
		fmt.Fprintf(r.progress, "No papers found in store (0 papers)\n")
		return result, nil
	}

	papers, err := r.repo.RecentPapers(ctx, total)
	if err != nil {
		return nil, fmt.Errorf("failed to read papers: %w", err)
	}
	result.Scanned = len(papers)

	if r.config.MissingOnly {
		pending := papers[:0]
		for _, p := range papers {
			if !p.HasEmbedding() {
				pending = append(pending, p)
			}
		}
		papers = pending
	}
	if len(papers) == 0 {
		fmt.Fprintf(r.progress, "All %d papers already have embeddings\n", result.Scanned)
		return result, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d papers (batch size: %d)\n", len(papers), r.config.BatchSize)
	tracker := ingestion.NewProgressTracker(r.progress, len(papers)).WithUnit("papers")
	tracker.Start(0)
	defer tracker.Finish()

	for start := 0; start < len(papers); start += r.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch := papers[start:min(start+r.config.BatchSize, len(papers))]
		if err := r.process(ctx, batch); err != nil {
			return result, fmt.Errorf("failed to process batch at %d: %w", start, err)
		}
		result.Batches++
		result.Embedded += len(batch)
		tracker.Update(result.Embedded)
	}

	r.logger.Info("reembedding complete", "scanned", result.Scanned, "embedded", result.Embedded, "batches", result.Batches)
	return result, nil
}

// process embeds one batch and writes it back. Vectors are normalized so a
// dot product stays a cosine similarity.
func (r *Reembedder) process(ctx context.Context, batch []core.Paper) error {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = enrich.EmbeddingText(&batch[i])
	}

	var embeddings [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = r.embedder.EmbedTexts(ctx, texts)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay, nil)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", r.config.MaxRetries, err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, len(batch), len(embeddings))
	}

	for i := range batch {
		batch[i].Embedding = core.Vector(ai.NormalizeVector(embeddings[i]))
	}
	if err := r.repo.PutPapers(ctx, batch...); err != nil {
		return fmt.Errorf("failed to update papers: %w", err)
	}
	return nil
}
