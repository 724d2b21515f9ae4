package badger

import "github.com/poiesic/paperfeed/storage"

// NewMemoryRepositories creates in-memory paper and checkpoint repositories for testing.
// Returns papers, checkpoints, backend, and error.
// Caller must close the backend when done.
func NewMemoryRepositories(opts ...PaperOption) (storage.PaperRepository, storage.CheckpointRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	papers, err := NewPaperRepository(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	return papers, NewCheckpointRepository(backend), backend, nil
}
