package enrich

import "errors"

var (
	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrSummaryCount is returned when the model answers with no usable summaries.
	ErrSummaryCount = errors.New("no summaries in model response")
)
