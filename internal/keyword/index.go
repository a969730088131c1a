// Package keyword provides keyword search over libraries.
package keyword

import (
	"context"

	"github.com/puzzlepages/shelf/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from matches in the title field.
	// Use 1.0 for no boost.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance (1 or 2). Default is 1.
	Fuzziness int
}

// DefaultSearchOptions boosts title matches and tolerates one typo.
var DefaultSearchOptions = SearchOptions{TitleBoost: 3, FuzzyEnabled: true, Fuzziness: 1}

// LibraryIndex defines keyword search over library records.
type LibraryIndex interface {
	// Rebuild replaces the indexed set with records.
	Rebuild(records []models.LibraryRecord) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit. ID is the library id.
type Result struct {
	ID    string
	Score float64
}
