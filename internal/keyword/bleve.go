package keyword

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/puzzlepages/shelf/internal/models"
)

const (
	fieldTitle = "title"
	fieldText  = "text"
	fieldTags  = "tags"
)

// BleveIndex implements LibraryIndex with an in-memory Bleve index. Rebuild
// builds a fresh index and swaps it in, so searches never see a partial set.
type BleveIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewBleveIndex creates an empty in-memory index.
func NewBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so "shelf" does not match "shelving".
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldTitle, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldText, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldTags, textFieldMapping)
	im.AddDocumentMapping("library", docMapping)
	im.DefaultType = "library"
	im.DefaultMapping = docMapping
	return im
}

// document is the indexed form of a library. Slugs index with hyphens as
// spaces so "corner-shelf" is searchable as "corner shelf".
func document(r *models.LibraryRecord) map[string]any {
	text := []string{strings.ReplaceAll(r.Slug, "-", " "), r.Description, r.Body}
	if r.Location != nil && r.Location.Address != "" {
		text = append(text, r.Location.Address)
	}
	return map[string]any{
		fieldTitle: r.Title,
		fieldText:  strings.Join(text, "\n"),
		fieldTags:  strings.Join(r.Tags, " "),
	}
}

// Rebuild indexes records into a new index and replaces the current one.
func (b *BleveIndex) Rebuild(records []models.LibraryRecord) error {
	next, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return fmt.Errorf("failed to create Bleve index: %w", err)
	}
	batch := next.NewBatch()
	for i := range records {
		if records[i].LibraryID == "" {
			continue
		}
		if err := batch.Index(records[i].LibraryID, document(&records[i])); err != nil {
			_ = next.Close()
			return fmt.Errorf("failed to index library %s: %w", records[i].LibraryID, err)
		}
	}
	if err := next.Batch(batch); err != nil {
		_ = next.Close()
		return fmt.Errorf("failed to apply Bleve batch: %w", err)
	}

	b.mu.Lock()
	prev := b.index
	b.index = next
	b.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Search runs the query over title, text and tags and returns up to limit
// results ordered by score. Title matches add TitleBoost times their score.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	o := DefaultSearchOptions
	if opts != nil {
		o = *opts
	}
	if o.TitleBoost <= 0 {
		o.TitleBoost = 1
	}
	if o.Fuzziness <= 0 {
		o.Fuzziness = 1
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	// Request enough from each field so the merged top "limit" is correct.
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	scores := make(map[string]float64)
	for _, f := range []struct {
		name  string
		boost float64
	}{{fieldTitle, o.TitleBoost}, {fieldText, 1}, {fieldTags, 1}} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := bleve.NewSearchRequest(buildQuery(terms, f.name, o))
		req.Size = reqSize
		res, err := b.index.Search(req)
		if err != nil {
			return nil, fmt.Errorf("Bleve %s search failed: %w", f.name, err)
		}
		for _, hit := range res.Hits {
			scores[hit.ID] += hit.Score * f.boost
		}
	}

	out := make([]*Result, 0, len(scores))
	for id, score := range scores {
		out = append(out, &Result{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// buildQuery matches any term in field, fuzzily when enabled.
func buildQuery(terms []string, field string, o SearchOptions) blevequery.Query {
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		if o.FuzzyEnabled && len([]rune(term)) > o.Fuzziness+2 {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(o.Fuzziness)
			fq.SetField(field)
			queries = append(queries, fq)
			continue
		}
		mq := bleve.NewMatchQuery(term)
		mq.SetField(field)
		queries = append(queries, mq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// DocCount returns the number of indexed libraries.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
