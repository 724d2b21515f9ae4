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

package arxiv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/poiesic/paperfeed/core"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the arXiv export API query endpoint.
	BaseURL = "http://export.arxiv.org/api/query"

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultInterval is the minimum gap between two requests.
	DefaultInterval = 3 * time.Second

	// DefaultMaxResults is used when a query does not set MaxResults.
	DefaultMaxResults = 20

	// MaxResultsLimit is the largest page arXiv serves in one response.
	MaxResultsLimit = 2000

	maxErrorBody = 4096
)

// DefaultCategories are the AI-related arXiv categories queried when no
// category is requested.
var DefaultCategories = []string{"cs.AI", "cs.LG", "cs.CL", "cs.CV", "cs.NE", "stat.ML"}

// Query selects a page of papers.
type Query struct {
	MaxResults int
	Start      int
	// SortBy is one of submittedDate, lastUpdatedDate, or relevance.
	SortBy string
	// SortOrder is ascending or descending.
	SortOrder string
	// Category restricts results to one arXiv category such as cs.CL.
	Category string
	// Search adds free-text terms matched against all fields.
	Search string
}

// Source fetches raw, unenriched papers.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]core.Paper, error)
}

// Client is a rate-limited client for the arXiv export API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	categories []string
	logger     *slog.Logger
}

var _ Source = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom endpoint (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithInterval sets the minimum gap between requests. Zero disables pacing.
func WithInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithCategories replaces the categories queried by default.
func WithCategories(categories ...string) ClientOption {
	return func(c *Client) {
		if len(categories) > 0 {
			c.categories = categories
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new arXiv API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(DefaultInterval), 1),
		baseURL:    BaseURL,
		categories: DefaultCategories,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("component", "arxiv")
	return c
}

// Fetch retrieves one page of papers matching q, newest first by default.
func (c *Client) Fetch(ctx context.Context, q Query) ([]core.Paper, error) {
	u, err := c.buildURL(q)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/atom+xml")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	papers, err := ParseFeed(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched papers", "papers", len(papers), "start", q.Start, "category", q.Category,
		"search", q.Search, "elapsed", time.Since(start))
	return papers, nil
}

func (c *Client) buildURL(q Query) (string, error) {
	if q.Start < 0 {
		return "", fmt.Errorf("%w: start must not be negative, got %d", ErrInvalidQuery, q.Start)
	}
	if q.MaxResults < 0 || q.MaxResults > MaxResultsLimit {
		return "", fmt.Errorf("%w: max results must be in [0, %d], got %d", ErrInvalidQuery, MaxResultsLimit, q.MaxResults)
	}

	maxResults := q.MaxResults
	if maxResults == 0 {
		maxResults = DefaultMaxResults
	}
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "submittedDate"
	}
	sortOrder := q.SortOrder
	if sortOrder == "" {
		sortOrder = "descending"
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad base URL: %w", ErrInvalidQuery, err)
	}
	params := url.Values{}
	params.Set("search_query", c.searchQuery(q))
	params.Set("start", strconv.Itoa(q.Start))
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", sortBy)
	params.Set("sortOrder", sortOrder)
	base.RawQuery = params.Encode()
	return base.String(), nil
}

// searchQuery builds arXiv's search_query expression. Free-text terms are
// ANDed together and with the category filter.
func (c *Client) searchQuery(q Query) string {
	var cats string
	if q.Category != "" {
		cats = "cat:" + q.Category
	} else {
		parts := make([]string, len(c.categories))
		for i, cat := range c.categories {
			parts[i] = "cat:" + cat
		}
		cats = strings.Join(parts, " OR ")
	}

	terms := strings.Fields(q.Search)
	if len(terms) == 0 {
		return cats
	}
	for i, t := range terms {
		terms[i] = "all:" + strings.Trim(t, `"()`)
	}
	return strings.Join(terms, " AND ") + " AND (" + cats + ")"
}

// ParseFeed converts an arXiv Atom response into papers.
func ParseFeed(r io.Reader) ([]core.Paper, error) {
	parser := &atom.Parser{}
	feed, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	papers := make([]core.Paper, 0, len(feed.Entries))
	var errs []error
	for _, entry := range feed.Entries {
		if strings.Contains(entry.ID, "/api/errors") {
			return nil, &APIError{Message: collapse(entry.Summary)}
		}
		paper, err := entryToPaper(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		papers = append(papers, paper)
	}
	if len(papers) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, errors.Join(errs...))
	}
	return papers, nil
}

func entryToPaper(entry *atom.Entry) (core.Paper, error) {
	_, id, ok := strings.Cut(entry.ID, "/abs/")
	if !ok || id == "" {
		return core.Paper{}, fmt.Errorf("entry id %q has no /abs/ segment", entry.ID)
	}

	paper := core.Paper{
		ID:       id,
		Title:    collapse(entry.Title),
		Abstract: collapse(entry.Summary),
		ArxivURL: entry.ID,
	}
	for _, a := range entry.Authors {
		if a != nil && a.Name != "" {
			paper.Authors = append(paper.Authors, strings.TrimSpace(a.Name))
		}
	}
	for _, cat := range entry.Categories {
		if cat != nil && cat.Term != "" {
			paper.Categories = append(paper.Categories, cat.Term)
		}
	}
	for _, link := range entry.Links {
		if link != nil && link.Title == "pdf" {
			paper.PDFURL = link.Href
			break
		}
	}
	if entry.PublishedParsed != nil {
		paper.Published = entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		paper.Updated = entry.UpdatedParsed.UTC()
	}

	if err := core.ValidatePaper(&paper); err != nil {
		return core.Paper{}, fmt.Errorf("entry %s: %w", id, err)
	}
	return paper, nil
}

// collapse replaces the hard line breaks arXiv wraps titles and abstracts
// with by single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
