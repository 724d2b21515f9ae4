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

package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/paperfeed/ai"
	"github.com/poiesic/paperfeed/core"
	"golang.org/x/time/rate"
)

const (
	// DefaultBatchSize is how many papers share one summarization call.
	DefaultBatchSize = 5
	// DefaultBatchInterval is the minimum gap between summarization calls.
	DefaultBatchInterval = time.Second
	// DefaultMaxAttempts bounds attempts of a rate-limited summarization call.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the first backoff delay after a rate limit.
	DefaultBaseDelay = 2 * time.Second
	// MaxEmbedChars caps the text sent to the embedding model.
	MaxEmbedChars = 8000
)

// Enricher summarizes and embeds papers.
type Enricher struct {
	completer     ai.Completer
	embedder      ai.Embedder
	pool          *ants.Pool
	limiter       *rate.Limiter
	batchSize     int
	maxAttempts   int
	baseDelay     time.Duration
	skipEmbedding bool
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher) error

// WithBatchSize sets how many papers are summarized per call.
func WithBatchSize(size int) Option {
	return func(e *Enricher) error {
		if size < 1 {
			return fmt.Errorf("batch size must be at least 1, got %d", size)
		}
		e.batchSize = size
		return nil
	}
}

// WithBatchInterval sets the minimum gap between summarization calls.
// Zero disables pacing.
func WithBatchInterval(d time.Duration) Option {
	return func(e *Enricher) error {
		if d <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return nil
		}
		e.limiter = rate.NewLimiter(rate.Every(d), 1)
		return nil
	}
}

// WithRetry sets the attempt bound and base delay for rate-limited calls.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(e *Enricher) error {
		if maxAttempts < 1 {
			return ai.ErrInvalidMaxAttempts
		}
		e.maxAttempts = maxAttempts
		e.baseDelay = baseDelay
		return nil
	}
}

// WithPoolSize sets the embedding worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Enricher) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.Release()
		}
		e.pool = pool
		return nil
	}
}

// WithoutEmbeddings disables embedding generation. Papers are still summarized.
func WithoutEmbeddings() Option {
	return func(e *Enricher) error {
		e.skipEmbedding = true
		return nil
	}
}

// WithClock injects the time source used to stamp SummarizedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) error {
		if now != nil {
			e.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEnricher creates an Enricher backed by provider's completer and embedder.
// Call Release when done to stop the embedding workers.
func NewEnricher(provider ai.Provider, opts ...Option) (*Enricher, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	e := &Enricher{
		completer:   provider.Completer(),
		embedder:    provider.Embedder(),
		pool:        pool,
		limiter:     rate.NewLimiter(rate.Every(DefaultBatchInterval), 1),
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		now:         time.Now,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(e); optErr != nil {
			e.Release()
			return nil, optErr
		}
	}

	e.logger = e.logger.With("component", "enricher")
	return e, nil
}

// Enrich returns copies of papers with summaries and, where possible,
// embeddings attached. It never fails as a whole: a failed batch falls back
// to templated summaries and a failed embedding leaves the paper tag-only.
// Output order matches input order.
func (e *Enricher) Enrich(ctx context.Context, papers []core.Paper) []core.Paper {
	out := make([]core.Paper, len(papers))
	copy(out, papers)
	if len(out) == 0 {
		return out
	}

	e.logger.Info("enriching papers", "papers", len(out), "batchSize", e.batchSize)
	fallbacks := 0
	for start := 0; start < len(out); start += e.batchSize {
		batch := out[start:min(start+e.batchSize, len(out))]
		fallbacks += e.summarizeBatch(ctx, batch)
		e.embedBatch(ctx, batch)
		e.logger.Debug("batch enriched", "processed", start+len(batch), "total", len(out))
	}

	embedded := 0
	for i := range out {
		if out[i].HasEmbedding() {
			embedded++
		}
	}
	e.logger.Info("enrichment complete", "papers", len(out), "fallbacks", fallbacks, "withEmbeddings", embedded)
	return out
}

// summarizeBatch fills in summaries in place and returns how many papers got
// a fallback.
func (e *Enricher) summarizeBatch(ctx context.Context, batch []core.Paper) int {
	summaries, err := e.requestSummaries(ctx, batch)
	if err != nil {
		e.logger.Warn("summarization failed, using fallback summaries", "papers", len(batch), "err", err)
		summaries = make([]core.Summary, len(batch))
		for i := range batch {
			summaries[i] = fallbackSummary(&batch[i])
		}
	}

	stamp := e.now().UTC()
	fallbacks := 0
	for i := range batch {
		s := summaries[i]
		batch[i].Summary = &s
		batch[i].SummarizedAt = stamp
		if s.Fallback {
			fallbacks++
		}
	}
	return fallbacks
}

func (e *Enricher) requestSummaries(ctx context.Context, batch []core.Paper) ([]core.Summary, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := summaryPrompt(batch)
	var response string
	err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		response, err = e.completer.Complete(ctx, prompt, tokensPerPaper*len(batch))
		return err
	}, e.maxAttempts, e.baseDelay, ai.IsRateLimited)
	if err != nil {
		return nil, err
	}

	parsed, err := parseSummaries(response)
	if err != nil {
		return nil, err
	}
	return matchSummaries(batch, parsed), nil
}

// embedBatch embeds each paper of the batch on the worker pool. Failures are
// logged and leave the paper without an embedding.
func (e *Enricher) embedBatch(ctx context.Context, batch []core.Paper) {
	if e.skipEmbedding {
		return
	}

	var wg sync.WaitGroup
	for i := range batch {
		paper := &batch[i]
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			vector, err := e.embedder.EmbedText(ctx, EmbeddingText(paper))
			if err != nil {
				e.logger.Warn("failed to embed paper", "id", paper.ID, "err", err)
				return
			}
			paper.Embedding = core.Vector(vector)
		})
		if err != nil {
			wg.Done()
			e.logger.Error("failed to schedule embedding", "id", paper.ID, "err", err)
		}
	}
	wg.Wait()
}

// EmbeddingText is the text embedded for a paper: its title and abstract.
func EmbeddingText(paper *core.Paper) string {
	return ai.TruncateText(paper.Title+"\n\n"+paper.Abstract, MaxEmbedChars)
}

// Release stops the embedding workers. The Enricher must not be used afterwards.
func (e *Enricher) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}
