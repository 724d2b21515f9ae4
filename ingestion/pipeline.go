package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/paperfeed/arxiv"
	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/dedup"
	"github.com/poiesic/paperfeed/storage"
	"golang.org/x/time/rate"
)

const (
	// BackfillJob names the checkpoint of the backfill job.
	BackfillJob = "backfill"
	// DefaultTarget is how many new papers a backfill processes.
	DefaultTarget = 100
	// DefaultPageSize is how many papers are requested per arXiv call.
	DefaultPageSize = 50
	// DefaultPageDelay is the minimum gap between two page fetches.
	DefaultPageDelay = 3 * time.Second
)

// PaperEnricher attaches summaries and embeddings to papers.
type PaperEnricher interface {
	Enrich(ctx context.Context, papers []core.Paper) []core.Paper
}

// Report summarizes one job run.
type Report struct {
	Fetched        int  `json:"total"`
	Processed      int  `json:"processed"`
	WithEmbeddings int  `json:"withEmbeddings"`
	Skipped        int  `json:"skipped"`
	Pages          int  `json:"pages"`
	Resumed        bool `json:"resumed,omitempty"`
	// Exhausted is set when the source ran out of papers before the target.
	Exhausted bool `json:"exhausted,omitempty"`
}

// Pipeline runs fetch, dedup, enrich, and save over pages of papers.
type Pipeline struct {
	source      arxiv.Source
	papers      storage.PaperRepository
	checkpoints storage.CheckpointRepository
	index       *dedup.Index
	enricher    PaperEnricher
	pageSize    int
	pacer       *rate.Limiter
	progress    io.Writer
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithCheckpoints enables resumable backfills.
func WithCheckpoints(checkpoints storage.CheckpointRepository) Option {
	return func(p *Pipeline) error {
		p.checkpoints = checkpoints
		return nil
	}
}

// WithPageSize sets how many papers are fetched per page.
func WithPageSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 || size > arxiv.MaxResultsLimit {
			return fmt.Errorf("page size must be in [1, %d], got %d", arxiv.MaxResultsLimit, size)
		}
		p.pageSize = size
		return nil
	}
}

// WithPageDelay sets the minimum gap between page fetches. Zero disables it.
func WithPageDelay(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			p.pacer = rate.NewLimiter(rate.Inf, 1)
			return nil
		}
		p.pacer = rate.NewLimiter(rate.Every(d), 1)
		return nil
	}
}

// WithProgress writes backfill progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithClock injects the time source used to stamp checkpoints.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	source arxiv.Source,
	papers storage.PaperRepository,
	enricher PaperEnricher,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if papers == nil {
		return nil, ErrRepositoryRequired
	}
	if enricher == nil {
		return nil, ErrEnricherRequired
	}

	p := &Pipeline{
		source:   source,
		papers:   papers,
		enricher: enricher,
		pageSize: DefaultPageSize,
		pacer:    rate.NewLimiter(rate.Every(DefaultPageDelay), 1),
		now:      time.Now,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	p.logger = p.logger.With("component", "ingestion")
	index, err := dedup.NewIndex(papers, dedup.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	p.index = index
	return p, nil
}

// RunDaily processes one page of the newest papers.
func (p *Pipeline) RunDaily(ctx context.Context) (*Report, error) {
	report := &Report{}
	if _, err := p.processPage(ctx, 0, p.pageSize, report); err != nil {
		return report, err
	}
	p.logger.Info("daily run complete", "fetched", report.Fetched, "processed", report.Processed,
		"withEmbeddings", report.WithEmbeddings, "skipped", report.Skipped)
	return report, nil
}

// Backfill pages back through the feed until target new papers have been
// processed or the source runs dry. With checkpoints enabled an interrupted
// run resumes from the last completed page and counts papers processed
// before the interruption toward target.
func (p *Pipeline) Backfill(ctx context.Context, target int) (*Report, error) {
	if target <= 0 {
		target = DefaultTarget
	}

	report := &Report{}
	start := 0
	if p.checkpoints != nil {
		chk, err := p.checkpoints.LoadCheckpoint(ctx, BackfillJob)
		if err != nil {
			return report, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if chk != nil {
			start, report.Processed, report.Resumed = chk.Start, chk.Processed, true
			p.logger.Info("resuming backfill", "start", start, "processed", chk.Processed, "target", target)
		}
	}

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, target)
		tracker.Start(report.Processed)
		defer tracker.Finish()
	}

	for report.Processed < target {
		fetched, err := p.processPage(ctx, start, target-report.Processed, report)
		if err != nil {
			return report, err
		}
		if fetched == 0 {
			report.Exhausted = true
			p.logger.Info("no more papers available from source", "start", start)
			break
		}

		start += p.pageSize
		if err := p.saveCheckpoint(ctx, start, report.Processed); err != nil {
			return report, err
		}
		if tracker != nil {
			tracker.Update(report.Processed)
		}
	}

	if p.checkpoints != nil {
		if err := p.checkpoints.DeleteCheckpoint(ctx, BackfillJob); err != nil {
			p.logger.Warn("failed to clear backfill checkpoint", "err", err)
		}
	}
	p.logger.Info("backfill complete", "fetched", report.Fetched, "processed", report.Processed,
		"withEmbeddings", report.WithEmbeddings, "skipped", report.Skipped, "pages", report.Pages)
	return report, nil
}

// processPage fetches the page at start, keeps at most limit new papers,
// enriches and saves them. It returns the number of papers fetched.
func (p *Pipeline) processPage(ctx context.Context, start, limit int, report *Report) (int, error) {
	if err := p.pacer.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	raw, err := p.source.Fetch(ctx, arxiv.Query{
		MaxResults: p.pageSize,
		Start:      start,
		SortBy:     "submittedDate",
		SortOrder:  "descending",
	})
	if err != nil {
		return 0, fmt.Errorf("%w: start %d: %w", ErrFetchFailed, start, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	report.Pages++
	report.Fetched += len(raw)

	fresh, skipped, err := p.index.FilterNew(ctx, raw)
	if err != nil {
		// Unchecked papers are reprocessed; saving them again only refreshes them.
		p.logger.Warn("dedup lookup partially failed", "err", err)
	}
	report.Skipped += skipped
	if len(fresh) > limit {
		fresh = fresh[:limit]
	}
	p.logger.Debug("page filtered", "start", start, "fetched", len(raw), "new", len(fresh), "skipped", skipped)
	if len(fresh) == 0 {
		return len(raw), nil
	}

	enriched := p.enricher.Enrich(ctx, fresh)
	if err := p.papers.PutPapers(ctx, enriched...); err != nil {
		return len(raw), fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	report.Processed += len(enriched)
	for i := range enriched {
		if enriched[i].HasEmbedding() {
			report.WithEmbeddings++
		}
	}
	return len(raw), nil
}

func (p *Pipeline) saveCheckpoint(ctx context.Context, start, processed int) error {
	if p.checkpoints == nil {
		return nil
	}
	err := p.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Job:       BackfillJob,
		Start:     start,
		Processed: processed,
		UpdatedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
