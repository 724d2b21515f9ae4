package ingestion

import "errors"

var (
	// ErrSourceRequired is returned when a paper source is not provided.
	ErrSourceRequired = errors.New("paper source required")

	// ErrRepositoryRequired is returned when a paper repository is not provided.
	ErrRepositoryRequired = errors.New("paper repository required")

	// ErrEnricherRequired is returned when an enricher is not provided.
	ErrEnricherRequired = errors.New("enricher required")

	// ErrFetchFailed is returned when a page could not be fetched.
	ErrFetchFailed = errors.New("failed to fetch papers")

	// ErrSaveFailed is returned when enriched papers could not be saved.
	ErrSaveFailed = errors.New("failed to save papers")
)
