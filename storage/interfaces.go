package storage

import (
	"context"

	"github.com/poiesic/paperfeed/core"
)

// ExistenceChecker answers bulk "have we stored this paper" questions.
type ExistenceChecker interface {
	// ExistingIDs reports which of ids are present in the store.
	// Every input id appears in the result map.
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// PaperReader provides read access to stored papers.
type PaperReader interface {
	// GetPaper retrieves a single paper by its arXiv id.
	// Returns ErrNotFound if the paper doesn't exist or has expired.
	GetPaper(ctx context.Context, id string) (*core.Paper, error)

	// GetPapers retrieves multiple papers by id.
	// Returns only the papers that exist (no error for missing papers).
	GetPapers(ctx context.Context, ids ...string) ([]core.Paper, error)

	// RecentPapers returns up to limit papers ordered by publication time, newest first.
	RecentPapers(ctx context.Context, limit int) ([]core.Paper, error)

	// CountPapers returns the number of unexpired papers.
	CountPapers(ctx context.Context) (int, error)
}

// PaperRepository is the durable paper store.
type PaperRepository interface {
	ExistenceChecker
	PaperReader

	// PutPapers inserts or replaces papers. Each stored paper expires after
	// the repository's TTL.
	PutPapers(ctx context.Context, papers ...core.Paper) error

	// Close releases resources held by the repository.
	Close() error
}

// CheckpointRepository persists progress of resumable batch jobs.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a job.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a job.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, job string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes a job's checkpoint. Missing checkpoints are not an error.
	DeleteCheckpoint(ctx context.Context, job string) error
}
