package paperfeed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/paperfeed/ai/mock"
	"github.com/poiesic/paperfeed/arxiv"
	"github.com/poiesic/paperfeed/cache"
	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/reembed"
	"github.com/poiesic/paperfeed/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	queries []arxiv.Query
	papers  func(q arxiv.Query) []core.Paper
	err     error
}

func (f *fakeSource) Fetch(ctx context.Context, q arxiv.Query) ([]core.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	if f.papers != nil {
		return f.papers(q), nil
	}
	out := make([]core.Paper, q.MaxResults)
	for i := range out {
		out[i] = core.Paper{
			ID:         fmt.Sprintf("2501.%05d", i),
			Title:      fmt.Sprintf("Paper %d", i),
			Abstract:   "An abstract about learning.",
			Authors:    []string{"A. Author"},
			Categories: []string{"cs.LG"},
			Published:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Duration(i) * time.Hour),
		}
	}
	return out, nil
}

func (f *fakeSource) calls() []arxiv.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]arxiv.Query(nil), f.queries...)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Enrich.BatchInterval = 0
	cfg.Enrich.PoolSize = 2
	return cfg
}

func newTestService(t *testing.T, cfg *Config, source *fakeSource, completer *mock.MockCompleter) *Service {
	t.Helper()
	if completer == nil {
		completer = mock.NewMockCompleter()
	}
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), completer)
	svc, err := NewService(cfg, WithProvider(provider), WithSource(source))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestFeedColdStartFetchesLiveThenServesMemory(t *testing.T) {
	source := &fakeSource{}
	completer := mock.NewMockCompleter()
	svc := newTestService(t, testConfig(), source, completer)
	ctx := context.Background()

	page, err := svc.Feed(ctx, FeedRequest{Page: 0, Limit: 10})
	require.NoError(t, err)

	calls := source.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, cache.DefaultFeedFetchSize, calls[0].MaxResults)
	assert.Empty(t, calls[0].Search)
	assert.Empty(t, calls[0].Category)

	assert.Equal(t, cache.TierLive, page.Tier)
	assert.Len(t, page.Papers, 10)
	assert.Equal(t, 15, page.TotalPapers)
	assert.True(t, page.HasMore)
	// 15 papers in batches of 5.
	assert.Equal(t, 3, completer.CallCount())
	for _, p := range page.Papers {
		require.NotNil(t, p.Summary)
		assert.True(t, p.HasEmbedding)
	}

	page, err = svc.Feed(ctx, FeedRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, cache.TierMemory, page.Tier)
	assert.Len(t, page.Papers, 5)
	assert.False(t, page.HasMore)
	assert.Len(t, source.calls(), 1)
}

func TestFeedKeySelection(t *testing.T) {
	tests := []struct {
		name         string
		req          FeedRequest
		wantSearch   string
		wantCategory string
		wantMax      int
	}{
		{name: "default", req: FeedRequest{}, wantMax: cache.DefaultFeedFetchSize},
		{name: "category", req: FeedRequest{Category: "nlp"}, wantCategory: "cs.CL", wantMax: cache.DefaultQueryFetchSize},
		{name: "unknown category", req: FeedRequest{Category: "astro"}, wantMax: cache.DefaultFeedFetchSize},
		{name: "search wins", req: FeedRequest{Search: "  Diffusion ", Category: "nlp"}, wantSearch: "diffusion", wantMax: cache.DefaultQueryFetchSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{}
			svc := newTestService(t, testConfig(), source, nil)

			_, err := svc.Feed(context.Background(), tt.req)
			require.NoError(t, err)

			calls := source.calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantSearch, calls[0].Search)
			assert.Equal(t, tt.wantCategory, calls[0].Category)
			assert.Equal(t, tt.wantMax, calls[0].MaxResults)
		})
	}
}

func TestFeedLimitIsClamped(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeSource{}, nil)

	page, err := svc.Feed(context.Background(), FeedRequest{Limit: -1})
	require.NoError(t, err)
	assert.Len(t, page.Papers, DefaultPageLimit)
}

func TestFeedSourceFailureWithNothingCached(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeSource{err: arxiv.ErrRequestFailed}, nil)

	_, err := svc.Feed(context.Background(), FeedRequest{})
	require.ErrorIs(t, err, cache.ErrTiersExhausted)
}

func TestPaperLookup(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeSource{}, nil)
	ctx := context.Background()

	_, err := svc.Paper(ctx, "2501.00001")
	require.ErrorIs(t, err, ErrPaperNotFound)

	_, err = svc.Feed(ctx, FeedRequest{})
	require.NoError(t, err)

	p, err := svc.Paper(ctx, "2501.00001")
	require.NoError(t, err)
	assert.Equal(t, "Paper 1", p.Title)
	assert.True(t, p.HasEmbedding)
}

func TestSimilarFallsBackToTags(t *testing.T) {
	source := &fakeSource{papers: func(q arxiv.Query) []core.Paper {
		return []core.Paper{
			{ID: "a", Title: "A", Abstract: "a", Categories: []string{"cs.CL"}},
			{ID: "b", Title: "B", Abstract: "b", Categories: []string{"cs.CL"}},
			{ID: "c", Title: "C", Abstract: "c", Categories: []string{"cs.CV"}},
		}
	}}
	completer := mock.NewMockCompleter().WithResponse(`[
		{"id": 1, "headline": "A", "tags": ["LLM", "NLP"]},
		{"id": 2, "headline": "B", "tags": ["LLM", "NLP"]},
		{"id": 3, "headline": "C", "tags": ["Vision"]}
	]`)
	cfg := testConfig()
	cfg.Enrich.SkipEmbeddings = true
	svc := newTestService(t, cfg, source, completer)

	related, err := svc.Similar(context.Background(), "a", 0)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "b", related[0].ID)
	require.NotNil(t, related[0].SimilarityScore)
	assert.Equal(t, 0.5, *related[0].SimilarityScore)
	assert.Equal(t, core.MethodTags, related[0].SimilarityMethod)
	assert.False(t, related[0].HasEmbedding)
}

func TestSimilarUnknownPaper(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeSource{}, nil)

	_, err := svc.Similar(context.Background(), "missing", 3)
	require.ErrorIs(t, err, ErrPaperNotFound)
}

func TestSearchRejectsBadInputBeforeFetching(t *testing.T) {
	source := &fakeSource{}
	svc := newTestService(t, testConfig(), source, nil)
	ctx := context.Background()

	_, err := svc.Search(ctx, search.Request{Query: "   "})
	require.ErrorIs(t, err, search.ErrEmptyQuery)

	long := make([]rune, search.MaxQueryLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.Search(ctx, search.Request{Query: string(long)})
	require.ErrorIs(t, err, search.ErrQueryTooLong)

	assert.Empty(t, source.calls())
}

func TestSearchRunsOverDefaultFeed(t *testing.T) {
	source := &fakeSource{}
	svc := newTestService(t, testConfig(), source, nil)

	resp, err := svc.Search(context.Background(), search.Request{Query: "learning"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 15, resp.TotalSearched)
	require.Len(t, source.calls(), 1)
	assert.Empty(t, source.calls()[0].Search)
}

func TestHealthAndStore(t *testing.T) {
	cfg := testConfig()
	cfg.InMemory = true
	svc := newTestService(t, cfg, &fakeSource{}, nil)
	ctx := context.Background()

	h := svc.Health(ctx)
	assert.Equal(t, "ok", h.Status)
	assert.Zero(t, h.CachedPapers)
	require.NotNil(t, h.StoredPapers)
	assert.Zero(t, *h.StoredPapers)

	_, err := svc.Feed(ctx, FeedRequest{})
	require.NoError(t, err)

	h = svc.Health(ctx)
	assert.Equal(t, 15, h.CachedPapers)
	n, err := svc.CountPapers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, n)
}

func TestStorelessService(t *testing.T) {
	svc := newTestService(t, testConfig(), &fakeSource{}, nil)
	ctx := context.Background()

	assert.Nil(t, svc.Health(ctx).StoredPapers)
	_, err := svc.CountPapers(ctx)
	require.ErrorIs(t, err, ErrNoStore)
	_, err = svc.NewPipeline()
	require.ErrorIs(t, err, ErrNoStore)
	_, err = svc.NewReembedder(nil, nil)
	require.ErrorIs(t, err, ErrNoStore)
	require.ErrorIs(t, svc.Compact(), ErrNoStore)
}

func TestNewPipelineUsesStore(t *testing.T) {
	cfg := testConfig()
	cfg.InMemory = true
	svc := newTestService(t, cfg, &fakeSource{}, nil)

	pipeline, err := svc.NewPipeline()
	require.NoError(t, err)
	require.NotNil(t, pipeline)
}

func TestReembedStoredPapers(t *testing.T) {
	cfg := testConfig()
	cfg.InMemory = true
	cfg.Enrich.SkipEmbeddings = true
	svc := newTestService(t, cfg, &fakeSource{}, nil)
	ctx := context.Background()

	page, err := svc.Feed(ctx, FeedRequest{})
	require.NoError(t, err)
	assert.False(t, page.Papers[0].HasEmbedding)

	job, err := svc.NewReembedder(&reembed.Config{BatchSize: 4, MaxRetries: 1, MissingOnly: true}, nil)
	require.NoError(t, err)
	result, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, result.Embedded)

	// The in-process feed still holds the old copies until it expires.
	p, err := svc.papers.GetPaper(ctx, page.Papers[0].ID)
	require.NoError(t, err)
	assert.True(t, p.HasEmbedding())
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.FeedTTL = 0

	_, err := NewService(cfg, WithProvider(mock.NewMockProvider()), WithSource(&fakeSource{}))
	require.Error(t, err)
}
