package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/poiesic/paperfeed/ai"
	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/similarity"
)

const (
	// MaxQueryLength is the longest accepted query, in characters.
	MaxQueryLength = 500
	// DefaultLimit is used when a request does not ask for a positive limit.
	DefaultLimit = 10
	// MaxLimit caps the number of results regardless of the request.
	MaxLimit = 20
	// DefaultRelevanceThreshold is the exclusive minimum relevance score.
	DefaultRelevanceThreshold = 0.25
	// DefaultQueryCacheTTL is how long a query embedding is reused.
	DefaultQueryCacheTTL = 15 * time.Minute

	summaryMaxTokens = 100
	summaryHeadlines = 5

	rejectedMessage        = "This search query is not appropriate for academic paper search."
	embeddingFailedMessage = "Failed to process search query. Please try again."
	noEmbeddingsMessage    = "No papers with embeddings available for semantic search."
)

// Status is the terminal state of a search request.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusRejected        Status = "invalid_query"
	StatusEmbeddingFailed Status = "embedding_failed"
)

// Request is a semantic search request.
type Request struct {
	Query          string `json:"query"`
	Limit          int    `json:"limit"`
	IncludeSummary bool   `json:"includeSummary"`
}

// Response is the outcome of a semantic search. A zero-result search is a
// success, distinct from rejection and embedding failure.
type Response struct {
	Success       bool               `json:"success"`
	Status        Status             `json:"status"`
	Error         string             `json:"error,omitempty"`
	Message       string             `json:"message,omitempty"`
	Query         string             `json:"query,omitempty"`
	OriginalQuery string             `json:"originalQuery,omitempty"`
	SearchTerms   []string           `json:"searchTerms,omitempty"`
	TotalSearched int                `json:"totalSearched"`
	Papers        []core.PublicPaper `json:"papers"`
	Summary       string             `json:"summary,omitempty"`
}

type cachedEmbedding struct {
	vector core.Vector
	at     time.Time
}

// Searcher ranks a corpus of papers against free-text queries.
type Searcher struct {
	validator *Validator
	embedder  ai.Embedder
	completer ai.Completer
	threshold float64
	cacheTTL  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[uint64]cachedEmbedding
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithRelevanceThreshold sets the exclusive minimum relevance score.
func WithRelevanceThreshold(threshold float64) Option {
	return func(s *Searcher) error {
		if threshold < -1 || threshold > 1 {
			return fmt.Errorf("relevance threshold %v out of range [-1, 1]", threshold)
		}
		s.threshold = threshold
		return nil
	}
}

// WithQueryCacheTTL sets how long query embeddings are reused. Zero disables the cache.
func WithQueryCacheTTL(ttl time.Duration) Option {
	return func(s *Searcher) error {
		s.cacheTTL = ttl
		return nil
	}
}

// WithClock injects the time source used for the query embedding cache.
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(provider ai.Provider, opts ...Option) (*Searcher, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		embedder:  provider.Embedder(),
		completer: provider.Completer(),
		threshold: DefaultRelevanceThreshold,
		cacheTTL:  DefaultQueryCacheTTL,
		now:       time.Now,
		logger:    slog.Default(),
		cache:     make(map[uint64]cachedEmbedding),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	validator, err := NewValidator(s.completer, s.logger)
	if err != nil {
		return nil, err
	}
	s.validator = validator
	s.logger = s.logger.With("component", "searcher")
	return s, nil
}

// Search runs a semantic search of req against corpus.
func (s *Searcher) Search(ctx context.Context, req Request, corpus []core.Paper) (*Response, error) {
	return s.SearchWithMonitor(ctx, req, corpus, nil)
}

// SearchWithMonitor runs a semantic search with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) SearchWithMonitor(ctx context.Context, req Request, corpus []core.Paper, monitor SearchMonitor) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if utf8.RuneCountInString(req.Query) > MaxQueryLength {
		return nil, fmt.Errorf("%w: maximum is %d characters", ErrQueryTooLong, MaxQueryLength)
	}
	limit := NormalizeLimit(req.Limit)

	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query)

	// 1. Validate
	validation := s.validator.Validate(ctx, query)
	monitor.AfterValidation(validation)
	if !validation.Valid {
		message := validation.Reason
		if message == "" {
			message = rejectedMessage
		}
		s.logger.Info("search query rejected", "query", query, "reason", message)
		return s.finish(monitor, &Response{
			Status:        StatusRejected,
			Error:         string(StatusRejected),
			Message:       message,
			OriginalQuery: query,
			Papers:        []core.PublicPaper{},
		}), nil
	}

	// 2. Expand
	expanded := ExpandQuery(validation.RefinedQuery, validation.SearchTerms)
	monitor.AfterExpansion(expanded)

	// 3. Embed
	vector, cached, err := s.embedQuery(ctx, expanded)
	monitor.AfterEmbedding(cached, err)
	if err != nil {
		s.logger.Error("failed to embed search query", "query", query, "err", err)
		return s.finish(monitor, &Response{
			Status:        StatusEmbeddingFailed,
			Error:         string(StatusEmbeddingFailed),
			Message:       embeddingFailedMessage,
			OriginalQuery: query,
			Papers:        []core.PublicPaper{},
		}), nil
	}

	resp := &Response{
		Success:       true,
		Status:        StatusSuccess,
		Query:         validation.RefinedQuery,
		OriginalQuery: query,
		SearchTerms:   validation.SearchTerms,
	}

	// 4. Score papers that carry an embedding
	candidates := 0
	matches := make([]core.Match, 0)
	for _, paper := range corpus {
		if !paper.HasEmbedding() {
			continue
		}
		candidates++
		score, ok := similarity.EmbeddingScore(vector, paper.Embedding)
		if !ok {
			s.logger.Debug("skipping paper with mismatched embedding", "id", paper.ID, "dims", len(paper.Embedding), "want", len(vector))
			continue
		}
		if score <= s.threshold {
			continue
		}
		matches = append(matches, core.Match{Paper: paper, Score: score, Method: core.MethodEmbedding})
	}
	resp.TotalSearched = candidates

	// 5. Filter & rank
	slices.SortStableFunc(matches, func(a, b core.Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	monitor.AfterScoring(candidates, len(matches))

	// 6. Respond
	resp.Papers = make([]core.PublicPaper, len(matches))
	for i, m := range matches {
		pp := m.Paper.Public()
		score := similarity.Round(m.Score)
		pp.RelevanceScore = &score
		resp.Papers[i] = pp
	}
	if candidates == 0 {
		resp.Message = noEmbeddingsMessage
	}

	if req.IncludeSummary {
		resp.Summary = s.summarize(ctx, query, resp.Papers)
	}

	s.logger.Debug("search complete", "query", query, "searched", candidates, "results", len(resp.Papers))
	return s.finish(monitor, resp), nil
}

func (s *Searcher) finish(monitor SearchMonitor, resp *Response) *Response {
	monitor.Finish(resp)
	return resp
}

// NormalizeLimit applies the default and the hard cap to a requested limit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// ExpandQuery builds the text that is embedded for a query. It places the
// query in the same kind of prose the paper embeddings were built from.
func ExpandQuery(refined string, terms []string) string {
	focus := terms
	if len(focus) > 3 {
		focus = focus[:3]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Research paper about: %s\n\n", refined)
	fmt.Fprintf(&b, "Key topics: %s\n\n", strings.Join(terms, ", "))
	fmt.Fprintf(&b, "This academic paper discusses %s.\n", refined)
	fmt.Fprintf(&b, "The research focuses on %s.", strings.Join(focus, " and "))
	return b.String()
}

// embedQuery returns the embedding for text, reusing a cached one while fresh.
func (s *Searcher) embedQuery(ctx context.Context, text string) (core.Vector, bool, error) {
	key := core.Fingerprint(text)
	now := s.now()

	if s.cacheTTL > 0 {
		s.mu.RLock()
		entry, ok := s.cache[key]
		s.mu.RUnlock()
		if ok && now.Sub(entry.at) < s.cacheTTL {
			return entry.vector, true, nil
		}
	}

	raw, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, fmt.Errorf("embedder returned an empty vector")
	}
	vector := core.Vector(raw)

	if s.cacheTTL > 0 {
		s.mu.Lock()
		s.cache[key] = cachedEmbedding{vector: vector, at: now}
		for k, e := range s.cache {
			if now.Sub(e.at) >= s.cacheTTL {
				delete(s.cache, k)
			}
		}
		s.mu.Unlock()
	}
	return vector, false, nil
}

// summarize describes the result set in a sentence or two, falling back to
// a templated sentence when the model is unavailable.
func (s *Searcher) summarize(ctx context.Context, query string, papers []core.PublicPaper) string {
	if len(papers) == 0 {
		return fmt.Sprintf("No papers found matching %q. Try broadening your search terms.", query)
	}

	var lines []string
	for i, p := range papers[:min(len(papers), summaryHeadlines)] {
		headline := p.Title
		if p.Summary != nil && p.Summary.Headline != "" {
			headline = p.Summary.Headline
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, headline))
	}

	prompt := fmt.Sprintf("Given this search query: %q\n\nAnd these top matching papers:\n%s\n\n"+
		"Write a 1-2 sentence summary of what types of papers were found. Be concise and helpful.",
		query, strings.Join(lines, "\n"))

	text, err := s.completer.Complete(ctx, prompt, summaryMaxTokens)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.logger.Warn("result summary failed, using fallback", "err", err)
		}
		return fmt.Sprintf("Found %d papers related to %q.", len(papers), query)
	}
	return strings.TrimSpace(text)
}
