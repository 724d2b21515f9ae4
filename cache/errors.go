package cache

import "errors"

var (
	// ErrLoaderRequired is returned when a Manager is built without a live loader.
	ErrLoaderRequired = errors.New("live loader required")

	// ErrTiersExhausted is returned when no tier could produce a feed.
	ErrTiersExhausted = errors.New("no cache tier could produce papers")

	// ErrPaperNotFound is returned when a paper is neither cached nor stored.
	ErrPaperNotFound = errors.New("paper not found")

	// ErrUnknownCategory is returned for category aliases outside the category map.
	ErrUnknownCategory = errors.New("unknown category")
)
