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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/paperfeed"
	"github.com/poiesic/paperfeed/ingestion"
	"github.com/poiesic/paperfeed/reembed"
	"github.com/poiesic/paperfeed/search"
	"github.com/poiesic/paperfeed/server"
	"github.com/urfave/cli/v2"
)

const defaultConfigFile = "paperfeed.yml"

func main() {
	if err := paperfeed.LoadEnv(); err != nil {
		log.Fatal(err)
	}
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "paperfeed",
		Usage: "AI-enriched arXiv paper feed with semantic search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"PAPERFEED_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   defaultConfigFile,
				EnvVars: []string{"PAPERFEED_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				EnvVars: []string{"PAPERFEED_DATA_DIR"},
			},
			&cli.BoolFlag{
				Name:  "in-memory",
				Usage: "Keep the paper store in memory",
			},
			&cli.StringFlag{
				Name:    "ai-host",
				Usage:   "OpenAI-compatible host for both embedding and completion",
				EnvVars: []string{"PAPERFEED_AI_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				EnvVars: []string{"PAPERFEED_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "completion-model",
				Usage:   "Completion model name",
				EnvVars: []string{"PAPERFEED_COMPLETION_MODEL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the AI host",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the feed HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						EnvVars: []string{"PAPERFEED_ADDR"},
					},
				},
			},
			{
				Name:   "backfill",
				Usage:  "Fetch, enrich, and store papers until the target is reached",
				Action: backfillCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "target",
						Usage: "Number of new papers to store",
						Value: ingestion.DefaultTarget,
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Papers requested per arXiv call",
						Value: ingestion.DefaultPageSize,
					},
					&cli.DurationFlag{
						Name:  "page-delay",
						Usage: "Minimum delay between arXiv calls",
						Value: ingestion.DefaultPageDelay,
					},
				},
			},
			{
				Name:   "daily",
				Usage:  "Fetch, enrich, and store the newest page of papers",
				Action: dailyCommand,
			},
			{
				Name:      "search",
				Usage:     "Semantic search over the current feed",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: search.DefaultLimit,
					},
					&cli.BoolFlag{
						Name:  "summary",
						Usage: "Include a one-sentence summary of the results",
					},
				},
			},
			{
				Name:      "similar",
				Usage:     "List papers related to a paper",
				ArgsUsage: "<paper-id>",
				Action:    similarCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of related papers",
						Value: paperfeed.DefaultSimilarK,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate embeddings for stored papers",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "missing-only",
						Usage: "Only embed papers that have no embedding",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of papers to embed per call",
						Value: reembed.DefaultConfig().BatchSize,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: reembed.DefaultConfig().MaxRetries,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: reembed.DefaultConfig().RetryDelay,
					},
				},
			},
			{
				Name:   "count",
				Usage:  "Print the number of stored papers",
				Action: countCommand,
			},
			{
				Name:   "compact",
				Usage:  "Run value log garbage collection on the store",
				Action: compactCommand,
			},
		},
	}
}

// loadConfig reads the config file and applies flag overrides. The default
// config file is optional; an explicitly named one must exist.
func loadConfig(c *cli.Context) (*paperfeed.Config, error) {
	path := c.String("config")
	cfg, err := paperfeed.LoadConfig(path, path == defaultConfigFile)
	if err != nil {
		return nil, err
	}

	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.Bool("in-memory") {
		cfg.InMemory = true
	}
	if host := c.String("ai-host"); host != "" {
		cfg.AI.EmbeddingHost = host
		cfg.AI.CompletionHost = host
	}
	if model := c.String("embedding-model"); model != "" {
		cfg.AI.EmbeddingModel = model
	}
	if model := c.String("completion-model"); model != "" {
		cfg.AI.CompletionModel = model
	}
	if key := c.String("api-key"); key != "" {
		cfg.AI.APIKey = key
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openService(c *cli.Context) (*paperfeed.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	svc, err := paperfeed.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	svc, err := paperfeed.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(svc).ListenAndServe(ctx, cfg.Server.Addr)
}

func backfillCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	pipeline, err := svc.NewPipeline(
		ingestion.WithPageSize(c.Int("page-size")),
		ingestion.WithPageDelay(c.Duration("page-delay")),
		ingestion.WithProgress(c.App.ErrWriter),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.Backfill(ctx, c.Int("target"))
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	return printJSON(c.App.Writer, report)
}

func dailyCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	pipeline, err := svc.NewPipeline()
	if err != nil {
		return err
	}
	report, err := pipeline.RunDaily(c.Context)
	if err != nil {
		return fmt.Errorf("daily ingestion failed: %w", err)
	}
	return printJSON(c.App.Writer, report)
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("search query is required")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	resp, err := svc.Search(c.Context, search.Request{
		Query:          query,
		Limit:          c.Int("limit"),
		IncludeSummary: c.Bool("summary"),
	})
	if err != nil {
		return err
	}

	w := c.App.Writer
	if !resp.Success {
		fmt.Fprintf(w, "%s: %s\n", resp.Status, resp.Message)
		return nil
	}
	if resp.Summary != "" {
		fmt.Fprintln(w, resp.Summary)
	}
	fmt.Fprintf(w, "Found %d of %d papers\n", len(resp.Papers), resp.TotalSearched)
	for i, p := range resp.Papers {
		score := 0.0
		if p.RelevanceScore != nil {
			score = *p.RelevanceScore
		}
		fmt.Fprintf(w, "%d: %s (%s)[%0.2f]\n", i, p.Title, p.ID, score)
	}
	return nil
}

func similarCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("paper id is required")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	related, err := svc.Similar(c.Context, id, c.Int("k"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Found %d related papers\n", len(related))
	for i, p := range related {
		fmt.Fprintf(c.App.Writer, "%d: %s (%s)[%0.2f %s]\n", i, p.Title, p.ID, *p.SimilarityScore, p.SimilarityMethod)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	job, err := svc.NewReembedder(&reembed.Config{
		BatchSize:   c.Int("batch-size"),
		MaxRetries:  c.Int("max-retries"),
		RetryDelay:  c.Duration("retry-delay"),
		MissingOnly: c.Bool("missing-only"),
	}, c.App.ErrWriter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := job.Run(ctx)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return printJSON(c.App.Writer, result)
}

func countCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	n, err := svc.CountPapers(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, n)
	return nil
}

func compactCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Compact(); err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
