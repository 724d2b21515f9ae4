package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>arXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <title>Test Paper: A Novel Approach
      to Machine Learning</title>
    <summary>This paper presents a novel approach to machine learning
that improves performance.</summary>
    <author><name>John Doe</name></author>
    <author><name>Jane Smith</name></author>
    <published>2024-01-15T00:00:00Z</published>
    <updated>2024-01-16T08:30:00Z</updated>
    <category term="cs.LG" />
    <category term="cs.AI" />
    <link href="http://arxiv.org/abs/2401.00001v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2401.00001v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00002v2</id>
    <title>Second Paper</title>
    <summary>Short.</summary>
    <author><name>Ada Lovelace</name></author>
    <published>2024-01-14T00:00:00Z</published>
    <updated>2024-01-14T00:00:00Z</updated>
    <category term="cs.CL" />
  </entry>
</feed>`

const errorFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_1234</id>
    <title>Error</title>
    <summary>incorrect id format for 1234</summary>
  </entry>
</feed>`

func TestParseFeed(t *testing.T) {
	papers, err := ParseFeed(strings.NewReader(sampleFeed))
	require.NoError(t, err)
	require.Len(t, papers, 2)

	p := papers[0]
	assert.Equal(t, "2401.00001v1", p.ID)
	assert.Equal(t, "Test Paper: A Novel Approach to Machine Learning", p.Title)
	assert.Equal(t, "This paper presents a novel approach to machine learning that improves performance.", p.Abstract)
	assert.Equal(t, []string{"John Doe", "Jane Smith"}, p.Authors)
	assert.Equal(t, []string{"cs.LG", "cs.AI"}, p.Categories)
	assert.Equal(t, "http://arxiv.org/pdf/2401.00001v1", p.PDFURL)
	assert.Equal(t, "http://arxiv.org/abs/2401.00001v1", p.ArxivURL)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), p.Published)
	assert.Equal(t, time.Date(2024, 1, 16, 8, 30, 0, 0, time.UTC), p.Updated)
	assert.Nil(t, p.Summary)
	assert.False(t, p.HasEmbedding())

	assert.Equal(t, "2401.00002v2", papers[1].ID)
	assert.Empty(t, papers[1].PDFURL)
}

func TestParseFeed_Errors(t *testing.T) {
	_, err := ParseFeed(strings.NewReader(errorFeed))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "incorrect id format for 1234", apiErr.Message)

	_, err = ParseFeed(strings.NewReader("not xml at all"))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseFeed_SkipsBadEntries(t *testing.T) {
	feed := `<feed xmlns="http://www.w3.org/2005/Atom">
  <entry><id>urn:something-else</id><title>No abs segment</title></entry>
  <entry><id>http://arxiv.org/abs/2401.00003v1</id><title>Good</title></entry>
</feed>`
	papers, err := ParseFeed(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "2401.00003v1", papers[0].ID)
}

func TestParseFeed_Empty(t *testing.T) {
	papers, err := ParseFeed(strings.NewReader(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestClient_Fetch(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithInterval(0))
	papers, err := c.Fetch(context.Background(), Query{MaxResults: 15})
	require.NoError(t, err)
	assert.Len(t, papers, 2)

	assert.Equal(t, "cat:cs.AI OR cat:cs.LG OR cat:cs.CL OR cat:cs.CV OR cat:cs.NE OR cat:stat.ML", got.Get("search_query"))
	assert.Equal(t, "0", got.Get("start"))
	assert.Equal(t, "15", got.Get("max_results"))
	assert.Equal(t, "submittedDate", got.Get("sortBy"))
	assert.Equal(t, "descending", got.Get("sortOrder"))
}

func TestClient_SearchQuery(t *testing.T) {
	c := NewClient(WithCategories("cs.LG", "cs.CL"))

	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{name: "default categories", query: Query{}, want: "cat:cs.LG OR cat:cs.CL"},
		{name: "single category", query: Query{Category: "cs.CV"}, want: "cat:cs.CV"},
		{name: "search terms", query: Query{Search: "diffusion  models"}, want: "all:diffusion AND all:models AND (cat:cs.LG OR cat:cs.CL)"},
		{name: "search within category", query: Query{Search: `"rlhf"`, Category: "cs.CL"}, want: "all:rlhf AND (cat:cs.CL)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.searchQuery(tt.query))
		})
	}
}

func TestClient_InvalidQuery(t *testing.T) {
	c := NewClient(WithInterval(0))
	_, err := c.Fetch(context.Background(), Query{Start: -1})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = c.Fetch(context.Background(), Query{MaxResults: MaxResultsLimit + 1})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithInterval(0))
	_, err := c.Fetch(context.Background(), Query{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "service unavailable")
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithInterval(0))
	_, err := c.Fetch(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestClient_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	interval := 200 * time.Millisecond
	c := NewClient(WithBaseURL(srv.URL), WithInterval(interval))
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		_, err := c.Fetch(ctx, Query{})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 2*interval-20*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ContextCancelledWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithInterval(time.Hour))
	_, err := c.Fetch(context.Background(), Query{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Fetch(ctx, Query{})
	assert.ErrorIs(t, err, ErrRequestFailed)
}
