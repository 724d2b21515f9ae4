package arxiv

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestFailed indicates the HTTP request could not be completed.
	ErrRequestFailed = errors.New("arXiv request failed")

	// ErrInvalidResponse indicates the response body was not a parseable Atom feed.
	ErrInvalidResponse = errors.New("invalid response from arXiv")

	// ErrInvalidQuery indicates query parameters arXiv would reject.
	ErrInvalidQuery = errors.New("invalid arXiv query")
)

// APIError is an error reported by the arXiv API, either as a non-2xx
// status or as an error entry inside an otherwise valid feed.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("arXiv API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("arXiv API error: %s", e.Message)
}
