// Package id provides task identifier generation.
package id

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generator produces scraping task identifiers.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// TaskID returns an identifier of the form {source}_{YYYYMMDD_HHMMSS}_{suffix}.
// The UUID suffix keeps IDs unique when two tasks for a source start within
// the same second.
func (Generator) TaskID(source string, now time.Time) (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return fmt.Sprintf("%s_%s_%s", source, now.UTC().Format("20060102_150405"), u.String()[:8]), nil
}
