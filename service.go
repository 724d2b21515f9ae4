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

// Package paperfeed serves an AI-enriched arXiv feed: papers are fetched live,
// summarized and embedded, cached in memory and in a badger store, and
// exposed with related-paper ranking and semantic search.
package paperfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/paperfeed/ai"
	"github.com/poiesic/paperfeed/ai/openai"
	"github.com/poiesic/paperfeed/arxiv"
	"github.com/poiesic/paperfeed/cache"
	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/enrich"
	"github.com/poiesic/paperfeed/ingestion"
	"github.com/poiesic/paperfeed/reembed"
	"github.com/poiesic/paperfeed/search"
	"github.com/poiesic/paperfeed/similarity"
	"github.com/poiesic/paperfeed/storage"
	"github.com/poiesic/paperfeed/storage/badger"
)

const (
	// DefaultPageLimit is the feed page size when none is requested.
	DefaultPageLimit = 10
	// MaxPageLimit caps the feed page size.
	MaxPageLimit = 100
	// DefaultSimilarK is how many related papers are returned by default.
	DefaultSimilarK = 3
	// MaxSimilarK caps the number of related papers.
	MaxSimilarK = 10
)

var (
	// ErrNoStore is returned for operations that need the durable store when
	// the service runs without one.
	ErrNoStore = errors.New("durable store not configured")

	// ErrPaperNotFound is returned when a paper is neither cached nor stored.
	ErrPaperNotFound = cache.ErrPaperNotFound
)

// Service wires the store, the AI provider, the arXiv source, and the
// cache, search, and similarity components into one facade.
type Service struct {
	backend     *badger.Backend
	papers      storage.PaperRepository
	checkpoints storage.CheckpointRepository
	provider    ai.Provider
	source      arxiv.Source
	enricher    *enrich.Enricher
	cache       *cache.Manager
	searcher    *search.Searcher
	ranker      *similarity.Ranker
	config      *Config
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	provider ai.Provider
	source   arxiv.Source
	now      func() time.Time
	logger   *slog.Logger
}

// WithProvider replaces the OpenAI-compatible provider built from the config.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithSource replaces the arXiv client built from the config.
func WithSource(source arxiv.Source) ServiceOption {
	return func(o *serviceOptions) {
		o.source = source
	}
}

// WithClock injects the time source used by the caches.
func WithClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) {
		o.now = now
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService builds a Service from cfg. The caller must Close it.
func NewService(cfg *Config, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	options := &serviceOptions{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	s := &Service{config: cfg, logger: logger.With("component", "service")}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	if cfg.HasStore() {
		backend, err := badger.OpenBackend(cfg.DataDir, cfg.InMemory)
		if err != nil {
			return nil, err
		}
		s.backend = backend

		papers, err := badger.NewPaperRepository(backend, badger.WithTTL(cfg.PaperTTL))
		if err != nil {
			return nil, err
		}
		s.papers = papers
		s.checkpoints = badger.NewCheckpointRepository(backend)
	}

	s.provider = options.provider
	if s.provider == nil {
		provider, err := openai.NewProvider(&cfg.AI)
		if err != nil {
			return nil, err
		}
		s.provider = provider
	}

	s.source = options.source
	if s.source == nil {
		s.source = arxiv.NewClient(
			arxiv.WithBaseURL(cfg.Arxiv.BaseURL),
			arxiv.WithInterval(cfg.Arxiv.Interval),
			arxiv.WithCategories(cfg.Arxiv.Categories...),
			arxiv.WithLogger(logger),
		)
	}

	enrichOpts := []enrich.Option{
		enrich.WithBatchSize(cfg.Enrich.BatchSize),
		enrich.WithBatchInterval(cfg.Enrich.BatchInterval),
		enrich.WithClock(options.now),
		enrich.WithLogger(logger),
	}
	if cfg.Enrich.PoolSize > 0 {
		enrichOpts = append(enrichOpts, enrich.WithPoolSize(cfg.Enrich.PoolSize))
	}
	if cfg.Enrich.SkipEmbeddings {
		enrichOpts = append(enrichOpts, enrich.WithoutEmbeddings())
	}
	enricher, err := enrich.NewEnricher(s.provider, enrichOpts...)
	if err != nil {
		return nil, err
	}
	s.enricher = enricher

	cacheOpts := []cache.Option{
		cache.WithClock(options.now),
		cache.WithLogger(logger),
		cache.WithFeedTTL(cfg.Cache.FeedTTL),
		cache.WithQueryTTL(cfg.Cache.QueryTTL),
		cache.WithFetchSizes(cfg.Cache.FeedFetchSize, cfg.Cache.QueryFetchSize),
		cache.WithStoreReadLimit(cfg.Cache.StoreReadLimit),
	}
	if s.papers != nil {
		cacheOpts = append(cacheOpts, cache.WithStore(s.papers))
	}
	manager, err := cache.NewManager(cache.LoaderFunc(s.loadLive), cacheOpts...)
	if err != nil {
		return nil, err
	}
	s.cache = manager

	searcher, err := search.NewSearcher(s.provider, search.WithLogger(logger), search.WithClock(options.now))
	if err != nil {
		return nil, err
	}
	s.searcher = searcher

	s.ranker = similarity.NewRanker(similarity.WithLogger(logger))

	ok = true
	return s, nil
}

// loadLive is the cache's live tier: fetch from arXiv, then enrich.
func (s *Service) loadLive(ctx context.Context, key cache.Key, limit int) ([]core.Paper, error) {
	raw, err := s.source.Fetch(ctx, arxiv.Query{
		MaxResults: limit,
		Search:     key.Search(),
		Category:   key.Category(),
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return raw, nil
	}
	return s.enricher.Enrich(ctx, raw), nil
}

// FeedRequest selects a page of the feed. Search takes precedence over
// Category; an unknown category serves the default feed.
type FeedRequest struct {
	Page     int
	Limit    int
	Refresh  bool
	Search   string
	Category string
}

// FeedPage is one page of the served feed.
type FeedPage struct {
	Papers      []core.PublicPaper `json:"papers"`
	Page        int                `json:"page"`
	TotalPapers int                `json:"totalPapers"`
	HasMore     bool               `json:"hasMore"`
	Tier        cache.Tier         `json:"-"`
}

// Feed resolves and paginates the feed.
func (s *Service) Feed(ctx context.Context, req FeedRequest) (*FeedPage, error) {
	key := s.feedKey(req)
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)

	papers, tier, err := s.cache.Get(ctx, key, cache.GetOptions{Refresh: req.Refresh})
	if err != nil {
		return nil, err
	}

	page := cache.Paginate(papers, req.Page, limit)
	s.logger.Debug("feed served", "key", key.String(), "tier", tier, "page", page.Page, "papers", len(page.Papers))
	return &FeedPage{
		Papers:      core.PublicPapers(page.Papers),
		Page:        page.Page,
		TotalPapers: page.Total,
		HasMore:     page.HasMore,
		Tier:        tier,
	}, nil
}

func (s *Service) feedKey(req FeedRequest) cache.Key {
	if key := cache.SearchKey(req.Search); !key.IsDefault() {
		return key
	}
	if req.Category != "" {
		key, err := cache.CategoryKey(req.Category)
		if err == nil {
			return key
		}
		s.logger.Debug("unknown category, serving default feed", "category", req.Category)
	}
	return cache.DefaultKey
}

// Categories lists the browsable categories.
func (s *Service) Categories() []cache.Category {
	return cache.Categories()
}

// Paper returns one paper by id.
func (s *Service) Paper(ctx context.Context, id string) (*core.PublicPaper, error) {
	p, _, err := s.cache.Paper(ctx, id)
	if err != nil {
		return nil, err
	}
	public := p.Public()
	return &public, nil
}

// Similar returns up to k papers from the current feed related to the paper id.
func (s *Service) Similar(ctx context.Context, id string, k int) ([]core.PublicPaper, error) {
	if k <= 0 {
		k = DefaultSimilarK
	}
	k = min(k, MaxSimilarK)

	target, _, err := s.cache.Paper(ctx, id)
	if err != nil {
		return nil, err
	}
	pool, err := s.corpus(ctx)
	if err != nil {
		return nil, err
	}

	matches := s.ranker.Rank(*target, pool, k)
	out := make([]core.PublicPaper, len(matches))
	for i, m := range matches {
		out[i] = m.Public()
	}
	return out, nil
}

// Search runs a semantic search over the current feed.
func (s *Service) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	if err := validateQuery(req.Query); err != nil {
		return nil, err
	}
	corpus, err := s.corpus(ctx)
	if err != nil {
		return nil, err
	}
	return s.searcher.Search(ctx, req, corpus)
}

// validateQuery rejects bad input before the corpus is resolved, so a bad
// request never triggers a live fetch.
func validateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return search.ErrEmptyQuery
	}
	if utf8.RuneCountInString(q) > search.MaxQueryLength {
		return fmt.Errorf("%w: maximum is %d characters", search.ErrQueryTooLong, search.MaxQueryLength)
	}
	return nil
}

// corpus is the set of papers similarity and search rank over: the default feed.
func (s *Service) corpus(ctx context.Context) ([]core.Paper, error) {
	papers, _, err := s.cache.Get(ctx, cache.DefaultKey, cache.GetOptions{})
	return papers, err
}

// Health reports liveness and cache occupancy.
type Health struct {
	Status       string `json:"status"`
	CachedPapers int    `json:"cachedPapers"`
	StoredPapers *int   `json:"storedPapers,omitempty"`
}

// Health returns the service health. A store error is logged and omitted.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{Status: "ok", CachedPapers: s.cache.CachedCount()}
	if s.papers != nil {
		n, err := s.papers.CountPapers(ctx)
		if err != nil {
			s.logger.Warn("failed to count stored papers", "err", err)
		} else {
			h.StoredPapers = &n
		}
	}
	return h
}

// CountPapers returns the number of papers in the durable store.
func (s *Service) CountPapers(ctx context.Context) (int, error) {
	if s.papers == nil {
		return 0, ErrNoStore
	}
	return s.papers.CountPapers(ctx)
}

// NewPipeline creates a batch ingestion pipeline writing to the durable store.
func (s *Service) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	if s.papers == nil {
		return nil, ErrNoStore
	}
	opts = append([]ingestion.Option{
		ingestion.WithCheckpoints(s.checkpoints),
		ingestion.WithLogger(s.logger),
	}, opts...)
	return ingestion.NewPipeline(s.source, s.papers, s.enricher, opts...)
}

// NewReembedder creates a job that regenerates embeddings for stored papers.
func (s *Service) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	if s.papers == nil {
		return nil, ErrNoStore
	}
	return reembed.NewReembedder(s.papers, s.provider.Embedder(), config, progress)
}

// Compact runs a value log garbage collection pass on the durable store.
func (s *Service) Compact() error {
	if s.backend == nil {
		return ErrNoStore
	}
	return s.backend.RunGC(0.5)
}

// Close releases the enricher workers, the AI provider, and the store.
func (s *Service) Close() error {
	if s.enricher != nil {
		s.enricher.Release()
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
		}
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}
