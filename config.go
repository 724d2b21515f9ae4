package paperfeed

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/paperfeed/ai"
	"github.com/poiesic/paperfeed/arxiv"
	"github.com/poiesic/paperfeed/cache"
	"github.com/poiesic/paperfeed/enrich"
	"github.com/poiesic/paperfeed/storage/badger"
	"gopkg.in/yaml.v3"
)

// Config is the service configuration, usually read from paperfeed.yml.
type Config struct {
	// DataDir is where the badger store lives. Empty runs without a durable
	// store: the feed is served from memory and live fetches only.
	DataDir string `yaml:"data_dir,omitempty"`

	// InMemory keeps the durable store in memory (useful for demos and tests).
	InMemory bool `yaml:"in_memory,omitempty"`

	// PaperTTL is how long stored papers live.
	PaperTTL time.Duration `yaml:"paper_ttl"`

	AI     ai.Config    `yaml:"ai"`
	Arxiv  ArxivConfig  `yaml:"arxiv"`
	Cache  CacheConfig  `yaml:"cache"`
	Enrich EnrichConfig `yaml:"enrich"`
	Server ServerConfig `yaml:"server"`
}

// ArxivConfig configures the arXiv client.
type ArxivConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Interval   time.Duration `yaml:"interval"`
	Categories []string      `yaml:"categories,omitempty"`
}

// CacheConfig configures the tiered feed cache.
type CacheConfig struct {
	FeedTTL        time.Duration `yaml:"feed_ttl"`
	QueryTTL       time.Duration `yaml:"query_ttl"`
	FeedFetchSize  int           `yaml:"feed_fetch_size"`
	QueryFetchSize int           `yaml:"query_fetch_size"`
	StoreReadLimit int           `yaml:"store_read_limit"`
}

// EnrichConfig configures summarization and embedding.
type EnrichConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	BatchInterval time.Duration `yaml:"batch_interval"`
	PoolSize      int           `yaml:"pool_size,omitempty"`
	// SkipEmbeddings turns off embedding generation; similarity then uses tags only.
	SkipEmbeddings bool `yaml:"skip_embeddings,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		PaperTTL: badger.DefaultTTL,
		AI:       *ai.DefaultConfig(),
		Arxiv: ArxivConfig{
			BaseURL:  arxiv.BaseURL,
			Interval: arxiv.DefaultInterval,
		},
		Cache: CacheConfig{
			FeedTTL:        cache.DefaultFeedTTL,
			QueryTTL:       cache.DefaultQueryTTL,
			FeedFetchSize:  cache.DefaultFeedFetchSize,
			QueryFetchSize: cache.DefaultQueryFetchSize,
			StoreReadLimit: cache.DefaultStoreReadLimit,
		},
		Enrich: EnrichConfig{
			BatchSize:     enrich.DefaultBatchSize,
			BatchInterval: enrich.DefaultBatchInterval,
		},
		Server: ServerConfig{Addr: ":3001"},
	}
}

// LoadConfig reads a YAML file over the defaults. A missing file is not an
// error when optional is set.
func LoadConfig(path string, optional bool) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads environment variables from .env style files. Variables that
// are already set win. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// HasStore reports whether the configuration asks for a durable store.
func (c *Config) HasStore() bool {
	return c.DataDir != "" || c.InMemory
}

// Validate checks the configuration and normalizes the AI section.
func (c *Config) Validate() error {
	var errs []error

	c.AI.Normalize()
	if err := c.AI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ai: %w", err))
	}
	if c.HasStore() && c.PaperTTL <= 0 {
		errs = append(errs, errors.New("paper_ttl must be positive"))
	}
	if c.Arxiv.BaseURL == "" {
		errs = append(errs, errors.New("arxiv.base_url is required"))
	}
	if c.Cache.FeedTTL <= 0 || c.Cache.QueryTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.Cache.FeedFetchSize <= 0 || c.Cache.QueryFetchSize <= 0 || c.Cache.StoreReadLimit <= 0 {
		errs = append(errs, errors.New("cache sizes must be positive"))
	}
	if c.Enrich.BatchSize <= 0 {
		errs = append(errs, errors.New("enrich.batch_size must be positive"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	return errors.Join(errs...)
}
