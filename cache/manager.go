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

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/storage"
)

const (
	// DefaultFeedTTL is the freshness window of the default feed.
	DefaultFeedTTL = 30 * time.Minute
	// DefaultQueryTTL is the freshness window of search and category feeds.
	DefaultQueryTTL = 15 * time.Minute
	// DefaultFeedFetchSize is how many papers a live default-feed refresh fetches.
	DefaultFeedFetchSize = 15
	// DefaultQueryFetchSize is how many papers a live search or category refresh fetches.
	DefaultQueryFetchSize = 10
	// DefaultStoreReadLimit is how many recent papers are read from the durable store.
	DefaultStoreReadLimit = 50

	staleFactor = 4
)

// Tier is the level of the cache chain that produced a result.
type Tier string

const (
	TierMemory Tier = "memory"
	TierStore  Tier = "store"
	TierLive   Tier = "live"
)

// Store is the durable tier.
type Store interface {
	storage.PaperReader
	PutPapers(ctx context.Context, papers ...core.Paper) error
}

// Loader fetches and enriches papers for a key straight from the source.
type Loader interface {
	Load(ctx context.Context, key Key, limit int) ([]core.Paper, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, key Key, limit int) ([]core.Paper, error)

func (f LoaderFunc) Load(ctx context.Context, key Key, limit int) ([]core.Paper, error) {
	return f(ctx, key, limit)
}

// GetOptions tunes a single resolution.
type GetOptions struct {
	// Refresh forces the refresh path even when the cached entry is fresh.
	Refresh bool
}

type entry struct {
	papers []core.Paper
	at     time.Time
}

// Manager resolves feeds through the memory, store, and live tiers.
type Manager struct {
	loader Loader
	store  Store
	now    func() time.Time
	logger *slog.Logger

	feedTTL        time.Duration
	queryTTL       time.Duration
	feedFetchSize  int
	queryFetchSize int
	storeReadLimit int

	mu      sync.RWMutex
	feed    *entry
	entries map[Key]*entry
}

// Option configures a Manager.
type Option func(*Manager) error

// WithStore sets the durable tier. Without one the default feed is served
// from memory and live fetches only.
func WithStore(store Store) Option {
	return func(m *Manager) error {
		m.store = store
		return nil
	}
}

// WithClock injects the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		m.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// WithFeedTTL sets the default feed freshness window.
func WithFeedTTL(ttl time.Duration) Option {
	return func(m *Manager) error {
		if ttl <= 0 {
			return fmt.Errorf("feed TTL must be positive, got %s", ttl)
		}
		m.feedTTL = ttl
		return nil
	}
}

// WithQueryTTL sets the search and category freshness window.
func WithQueryTTL(ttl time.Duration) Option {
	return func(m *Manager) error {
		if ttl <= 0 {
			return fmt.Errorf("query TTL must be positive, got %s", ttl)
		}
		m.queryTTL = ttl
		return nil
	}
}

// WithFetchSizes sets how many papers live refreshes request for the
// default feed and for search or category feeds.
func WithFetchSizes(feed, query int) Option {
	return func(m *Manager) error {
		if feed <= 0 || query <= 0 {
			return fmt.Errorf("fetch sizes must be positive, got %d and %d", feed, query)
		}
		m.feedFetchSize = feed
		m.queryFetchSize = query
		return nil
	}
}

// WithStoreReadLimit sets how many recent papers a store read returns.
func WithStoreReadLimit(limit int) Option {
	return func(m *Manager) error {
		if limit <= 0 {
			return fmt.Errorf("store read limit must be positive, got %d", limit)
		}
		m.storeReadLimit = limit
		return nil
	}
}

// NewManager creates a Manager that falls back to loader for live data.
func NewManager(loader Loader, opts ...Option) (*Manager, error) {
	if loader == nil {
		return nil, ErrLoaderRequired
	}

	m := &Manager{
		loader:         loader,
		now:            time.Now,
		logger:         slog.Default(),
		feedTTL:        DefaultFeedTTL,
		queryTTL:       DefaultQueryTTL,
		feedFetchSize:  DefaultFeedFetchSize,
		queryFetchSize: DefaultQueryFetchSize,
		storeReadLimit: DefaultStoreReadLimit,
		entries:        make(map[Key]*entry),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.logger = m.logger.With("component", "cache")
	return m, nil
}

// Get resolves the papers for key and reports the tier that produced them.
// The returned slice is shared with the cache and must not be modified.
func (m *Manager) Get(ctx context.Context, key Key, opts GetOptions) ([]core.Paper, Tier, error) {
	if key.IsDefault() {
		return m.getFeed(ctx, opts)
	}
	return m.getKeyed(ctx, key, opts)
}

func (m *Manager) getFeed(ctx context.Context, opts GetOptions) ([]core.Paper, Tier, error) {
	now := m.now()

	m.mu.RLock()
	cached := m.feed
	m.mu.RUnlock()

	if !opts.Refresh && m.fresh(cached, now, m.feedTTL) {
		return cached.papers, TierMemory, nil
	}

	if m.store != nil {
		papers, err := m.store.RecentPapers(ctx, m.storeReadLimit)
		switch {
		case err != nil:
			m.logger.Warn("durable store read failed, falling back to live fetch", "err", err)
		case len(papers) > 0:
			m.setFeed(papers, now)
			m.logger.Debug("feed refreshed from store", "papers", len(papers))
			return papers, TierStore, nil
		}
	}

	papers, err := m.loader.Load(ctx, DefaultKey, m.feedFetchSize)
	if err != nil {
		return m.stale(cached, DefaultKey, err)
	}
	m.setFeed(papers, now)
	m.logger.Info("feed refreshed from live source", "papers", len(papers))

	if m.store != nil && len(papers) > 0 {
		if err := m.store.PutPapers(ctx, papers...); err != nil {
			m.logger.Warn("failed to write live papers back to store", "papers", len(papers), "err", err)
		}
	}
	return papers, TierLive, nil
}

func (m *Manager) getKeyed(ctx context.Context, key Key, opts GetOptions) ([]core.Paper, Tier, error) {
	now := m.now()

	m.mu.RLock()
	cached := m.entries[key]
	m.mu.RUnlock()

	if !opts.Refresh && m.fresh(cached, now, m.queryTTL) {
		return cached.papers, TierMemory, nil
	}

	papers, err := m.loader.Load(ctx, key, m.queryFetchSize)
	if err != nil {
		return m.stale(cached, key, err)
	}
	if len(papers) > 0 {
		m.mu.Lock()
		m.entries[key] = &entry{papers: papers, at: now}
		m.pruneLocked(now)
		m.mu.Unlock()
	}
	m.logger.Debug("keyed feed loaded", "key", key.String(), "papers", len(papers))
	return papers, TierLive, nil
}

// stale serves an expired entry when the live tier failed, so a source
// outage degrades to old data instead of an error.
func (m *Manager) stale(cached *entry, key Key, err error) ([]core.Paper, Tier, error) {
	if cached != nil && len(cached.papers) > 0 {
		m.logger.Warn("live fetch failed, serving stale papers", "key", key.String(), "age", m.now().Sub(cached.at), "err", err)
		return cached.papers, TierMemory, nil
	}
	m.logger.Error("live fetch failed", "key", key.String(), "err", err)
	return nil, "", fmt.Errorf("%w: %s: %w", ErrTiersExhausted, key, err)
}

func (m *Manager) fresh(e *entry, now time.Time, ttl time.Duration) bool {
	return e != nil && len(e.papers) > 0 && now.Sub(e.at) <= ttl
}

func (m *Manager) setFeed(papers []core.Paper, now time.Time) {
	m.mu.Lock()
	m.feed = &entry{papers: papers, at: now}
	m.mu.Unlock()
}

// pruneLocked drops keyed entries older than staleFactor query TTLs.
// Caller must hold m.mu.
func (m *Manager) pruneLocked(now time.Time) {
	for k, e := range m.entries {
		if now.Sub(e.at) > staleFactor*m.queryTTL {
			delete(m.entries, k)
		}
	}
}

// Paper finds a paper by id, looking in memory before the durable store.
func (m *Manager) Paper(ctx context.Context, id string) (*core.Paper, Tier, error) {
	if p := m.lookup(id); p != nil {
		return p, TierMemory, nil
	}

	if m.store == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrPaperNotFound, id)
	}
	p, err := m.store.GetPaper(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: %s", ErrPaperNotFound, id)
		}
		return nil, "", fmt.Errorf("failed to read paper %s: %w", id, err)
	}
	return p, TierStore, nil
}

func (m *Manager) lookup(id string) *core.Paper {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.feed != nil {
		for i := range m.feed.papers {
			if m.feed.papers[i].ID == id {
				p := m.feed.papers[i]
				return &p
			}
		}
	}
	for _, e := range m.entries {
		for i := range e.papers {
			if e.papers[i].ID == id {
				p := e.papers[i]
				return &p
			}
		}
	}
	return nil
}

// CachedCount returns the number of papers in the in-process default feed.
func (m *Manager) CachedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.feed == nil {
		return 0
	}
	return len(m.feed.papers)
}

// Invalidate drops every in-process entry. The durable store is untouched.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feed = nil
	clear(m.entries)
}
