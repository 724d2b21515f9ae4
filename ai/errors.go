package ai

import "errors"

var (
	// ErrRateLimited indicates the model provider refused a request because of rate limiting.
	ErrRateLimited = errors.New("rate limited by model provider")

	// ErrEmptyCompletion indicates the model returned no content.
	ErrEmptyCompletion = errors.New("empty completion")

	// ErrNoJSON indicates a response contained no balanced JSON value.
	ErrNoJSON = errors.New("no JSON value found in response")

	// ErrInvalidMaxAttempts indicates maxAttempts must be greater than 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
