// Package feed provides the visitor feed sources the view pipeline fetches
// raw tables from: the bundled export file, a remote feed endpoint, and an
// LRU-cached decorator around either.
package feed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/visitor-density/internal/domain"
)

// FileSource serves the bundled export. The whole table is returned for
// every day; date filtering happens downstream.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading the table at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads the file. A missing or unreadable file is reported as a
// *domain.NetworkError so callers treat it like any failed fetch.
func (s *FileSource) Fetch(ctx context.Context, _ time.Time) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &domain.NetworkError{Op: "read feed file", Err: fmt.Errorf("%s: %w", s.path, err)}
	}
	return raw, nil
}

// Path returns the file the source reads.
func (s *FileSource) Path() string { return s.path }
