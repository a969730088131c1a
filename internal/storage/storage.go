// Package storage defines the primary content index: one row per markdown
// document under the content root, keyed by its logical path.
package storage

import (
	"context"
	"errors"

	"github.com/puzzlepages/shelf/internal/models"
)

// ErrNotFound is returned when no document exists at a path.
var ErrNotFound = errors.New("document not found")

// Storage defines content document persistence operations.
type Storage interface {
	UpsertDocument(ctx context.Context, doc *models.ContentDoc) error
	GetDocument(ctx context.Context, path string) (*models.ContentDoc, error)
	DeleteDocument(ctx context.Context, path string) error

	// Queries
	FindByPrefix(ctx context.Context, prefix string) ([]*models.ContentDoc, error)
	FindByLibraryID(ctx context.Context, libraryID string) ([]*models.ContentDoc, error)
	ListPaths(ctx context.Context) ([]string, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
