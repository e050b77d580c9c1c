package store

import "fmt"

// DuplicateError is returned by Store when the content hash is already
// indexed. Callers treat it as a handled outcome, not a scraping failure.
type DuplicateError struct {
	URL  string
	Hash string
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate content from %s (hash %.12s)", e.URL, e.Hash)
}

// NotFoundError is returned by Load when a content file or its metadata
// sidecar is missing.
type NotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("stored content not found: %s", e.Path)
}
