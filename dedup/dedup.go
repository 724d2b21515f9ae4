// Package dedup filters out papers that are already in the durable store.
//
// Existence is checked in bulk against a storage.ExistenceChecker, chunked
// into batches of at most BatchSize ids. The index is read-only and lives
// only for the duration of one batch operation.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/storage"
)

// DefaultBatchSize is the store's per-request item limit.
const DefaultBatchSize = 100

var (
	// ErrCheckerRequired indicates no existence checker was supplied.
	ErrCheckerRequired = errors.New("existence checker is required")

	// ErrLookupFailed wraps failures of individual lookup batches.
	ErrLookupFailed = errors.New("existence lookup failed")
)

// Index answers which paper ids have already been processed.
type Index struct {
	checker   storage.ExistenceChecker
	batchSize int
	logger    *slog.Logger
}

// Option configures an Index.
type Option func(*Index) error

// WithBatchSize sets the number of ids per lookup.
func WithBatchSize(size int) Option {
	return func(i *Index) error {
		if size <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		i.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		if logger != nil {
			i.logger = logger
		}
		return nil
	}
}

// NewIndex creates an Index over checker.
func NewIndex(checker storage.ExistenceChecker, opts ...Option) (*Index, error) {
	if checker == nil {
		return nil, ErrCheckerRequired
	}
	idx := &Index{
		checker:   checker,
		batchSize: DefaultBatchSize,
		logger:    slog.Default().With("component", "dedup"),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Existing returns the subset of ids already present in the store.
//
// Every batch is attempted. A failing batch contributes nothing to the
// result and its error is joined into the returned error, which wraps
// ErrLookupFailed; results from successful batches are still returned.
// Ids from a failed batch are unknown, not absent.
func (i *Index) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	var errs []error

	for start := 0; start < len(ids); start += i.batchSize {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		end := min(start+i.batchSize, len(ids))
		batch := ids[start:end]

		found, err := i.checker.ExistingIDs(ctx, batch)
		if err != nil {
			i.logger.Warn("existence lookup failed", "from", start, "to", end, "err", err)
			errs = append(errs, fmt.Errorf("%w: ids %d-%d: %w", ErrLookupFailed, start, end, err))
			continue
		}
		for _, id := range batch {
			if found[id] {
				existing[id] = true
			}
		}
	}

	return existing, errors.Join(errs...)
}

// FilterNew returns the papers whose ids are not yet stored, in input order,
// along with how many were skipped as already present. On a partial lookup
// failure the papers from failed batches are treated as new and the error is
// returned for the caller to act on.
func (i *Index) FilterNew(ctx context.Context, papers []core.Paper) ([]core.Paper, int, error) {
	ids := make([]string, len(papers))
	for n, p := range papers {
		ids[n] = p.ID
	}

	existing, err := i.Existing(ctx, ids)

	fresh := make([]core.Paper, 0, len(papers))
	seen := make(map[string]bool, len(papers))
	skipped := 0
	for _, p := range papers {
		if existing[p.ID] || seen[p.ID] {
			skipped++
			continue
		}
		seen[p.ID] = true
		fresh = append(fresh, p)
	}

	i.logger.Debug("filtered papers", "candidates", len(papers), "new", len(fresh), "skipped", skipped)
	return fresh, skipped, err
}
