package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/storage"
)

const (
	// DefaultTTL is how long a stored paper lives before badger expires it.
	DefaultTTL = 90 * 24 * time.Hour

	// defaultWriteBatch bounds the number of papers written per transaction.
	defaultWriteBatch = 100
)

// PaperRepository implements storage.PaperRepository for BadgerDB.
type PaperRepository struct {
	backend    *Backend
	ttl        time.Duration
	writeBatch int
	logger     *slog.Logger
}

var _ storage.PaperRepository = (*PaperRepository)(nil)

// PaperOption configures a PaperRepository.
type PaperOption func(*PaperRepository)

// WithTTL sets the expiry applied to every stored paper.
func WithTTL(ttl time.Duration) PaperOption {
	return func(r *PaperRepository) {
		r.ttl = ttl
	}
}

// WithWriteBatch sets how many papers are written per transaction.
func WithWriteBatch(n int) PaperOption {
	return func(r *PaperRepository) {
		if n > 0 {
			r.writeBatch = n
		}
	}
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(backend *Backend, opts ...PaperOption) (storage.PaperRepository, error) {
	return newPaperRepository(backend, opts...)
}

func newPaperRepository(backend *Backend, opts ...PaperOption) (*PaperRepository, error) {
	if backend == nil {
		return nil, errors.New("badger: backend is required")
	}
	r := &PaperRepository{
		backend:    backend,
		ttl:        DefaultTTL,
		writeBatch: defaultWriteBatch,
		logger:     backend.logger.With("repository", "papers"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *PaperRepository) Close() error {
	return nil
}

// PutPapers inserts or replaces papers, chunked into bounded transactions.
func (r *PaperRepository) PutPapers(ctx context.Context, papers ...core.Paper) error {
	for start := 0; start < len(papers); start += r.writeBatch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+r.writeBatch, len(papers))
		if err := r.putBatch(papers[start:end]); err != nil {
			return fmt.Errorf("put papers %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (r *PaperRepository) putBatch(papers []core.Paper) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for i := range papers {
			paper := &papers[i]
			if paper.ID == "" {
				return fmt.Errorf("%w: paper id is empty", storage.ErrInvalidQuery)
			}

			// Drop a stale publication index entry if the date moved.
			existing, err := r.readPaper(tx, makePaperKey(paper.ID))
			if err != nil {
				return err
			}
			if existing != nil && !existing.Published.Equal(paper.Published) {
				if err := tx.Delete(makePublishedKey(existing.Published, existing.ID)); err != nil {
					return err
				}
			}

			value, err := storage.MarshalPaper(paper)
			if err != nil {
				return err
			}
			if err := tx.SetEntry(r.entry(makePaperKey(paper.ID), value)); err != nil {
				return err
			}
			if err := tx.SetEntry(r.entry(makePublishedKey(paper.Published, paper.ID), []byte(paper.ID))); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

func (r *PaperRepository) entry(key, value []byte) *badger.Entry {
	e := badger.NewEntry(key, value)
	if r.ttl > 0 {
		e = e.WithTTL(r.ttl)
	}
	return e
}

// GetPaper retrieves a single paper by id.
func (r *PaperRepository) GetPaper(ctx context.Context, id string) (*core.Paper, error) {
	var result *core.Paper
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readPaper(tx, makePaperKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetPapers retrieves multiple papers by id, skipping missing ones.
func (r *PaperRepository) GetPapers(ctx context.Context, ids ...string) ([]core.Paper, error) {
	var result []core.Paper
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			paper, err := r.readPaper(tx, makePaperKey(id))
			if err != nil {
				return err
			}
			if paper != nil {
				result = append(result, *paper)
			}
		}
		return nil
	}, false)
	return result, err
}

// ExistingIDs reports which ids are present. Key-only lookups; values are not read.
func (r *PaperRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			_, err := tx.Get(makePaperKey(id))
			switch {
			case err == nil:
				result[id] = true
			case errors.Is(err, badger.ErrKeyNotFound):
				result[id] = false
			default:
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecentPapers walks the publication index in reverse to return the newest papers first.
func (r *PaperRepository) RecentPapers(ctx context.Context, limit int) ([]core.Paper, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var results []core.Paper
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(paperPublishedPrefix)

		iter := tx.NewIterator(opts)
		defer iter.Close()

		seen := make(map[string]bool)
		for iter.Seek(makePublishedSeekKey()); iter.ValidForPrefix(opts.Prefix) && len(results) < limit; iter.Next() {
			id, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if seen[string(id)] {
				continue
			}
			seen[string(id)] = true

			paper, err := r.readPaper(tx, makePaperKey(string(id)))
			if err != nil {
				return err
			}
			if paper == nil {
				// Index entry outlived its paper.
				continue
			}
			results = append(results, *paper)
		}
		return nil
	}, false)

	return results, err
}

// CountPapers counts unexpired paper keys without reading values.
func (r *PaperRepository) CountPapers(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(paperPrefix)

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if !bytes.HasPrefix(iter.Item().Key(), opts.Prefix) {
				break
			}
			count++
		}
		return nil
	}, false)
	return count, err
}

// readPaper reads a paper from the transaction. Returns nil, nil when absent.
func (r *PaperRepository) readPaper(tx *badger.Txn, key []byte) (*core.Paper, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var paper *core.Paper
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		paper, unmarshalErr = storage.UnmarshalPaper(val)
		return unmarshalErr
	})
	return paper, err
}
