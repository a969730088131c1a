// Package manifest builds the deterministic id/slug/title snapshot of every
// library used for static route generation and legacy URL redirects.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/puzzlepages/shelf/internal/content"
	"github.com/puzzlepages/shelf/internal/libraryurl"
	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/pkg/utils"
)

// Build scans every library readable by reader and returns the manifest.
// Libraries without a library_id are skipped with a warning. When two
// libraries share a slug, the lower numeric library_id owns slugToId and
// slugToTitle.
func Build(ctx context.Context, reader content.Reader, logger *zap.Logger) (*models.LibraryManifest, error) {
	logger = utils.OrNop(logger)
	docs, err := reader.List(ctx)
	if err != nil {
		logger.Error("reading libraries directory", zap.String("root", reader.Root()), zap.Error(err))
		if ctx.Err() != nil {
			return nil, err
		}
	}
	entries := make([]models.LibraryManifestEntry, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		id := content.DocLibraryID(doc, reader.Layout())
		if id == "" {
			logger.Warn("library missing library_id, skipping", zap.String("folder", doc.Identity))
			continue
		}
		entries = append(entries, models.LibraryManifestEntry{
			LibraryID: id,
			Slug:      libraryurl.LibrarySlug(content.Title(doc.Frontmatter), doc.Identity, id),
			Title:     content.TitleOr(doc.Frontmatter, id),
			Folder:    doc.Identity,
		})
	}
	return FromEntries(entries, logger), nil
}

// FromEntries sorts entries by library_id and derives the lookup maps.
func FromEntries(entries []models.LibraryManifestEntry, logger *zap.Logger) *models.LibraryManifest {
	logger = utils.OrNop(logger)
	col := collate.New(language.English, collate.Numeric)
	sort.SliceStable(entries, func(i, j int) bool {
		return col.CompareString(entries[i].LibraryID, entries[j].LibraryID) < 0
	})

	m := &models.LibraryManifest{
		Libraries:     entries,
		IDToSlug:      make(map[string]string, len(entries)),
		SlugToID:      make(map[string]string, len(entries)),
		SlugToTitle:   make(map[string]string, len(entries)),
		FolderSlugMap: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		m.IDToSlug[e.LibraryID] = e.Slug
		m.FolderSlugMap[e.Folder] = e.Slug
		if owner, taken := m.SlugToID[e.Slug]; taken {
			if !lowerID(e.LibraryID, owner) {
				logger.Warn("slug collision", zap.String("slug", e.Slug),
					zap.String("kept", owner), zap.String("dropped", e.LibraryID))
				continue
			}
			logger.Warn("slug collision", zap.String("slug", e.Slug),
				zap.String("kept", e.LibraryID), zap.String("dropped", owner))
		}
		m.SlugToID[e.Slug] = e.LibraryID
		m.SlugToTitle[e.Slug] = e.Title
	}
	return m
}

// lowerID reports whether a sorts before b numerically, falling back to
// string order for non-numeric ids.
func lowerID(a, b string) bool {
	ai, errA := strconv.ParseUint(a, 10, 64)
	bi, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}

// Marshal renders m as indented JSON.
func Marshal(m *models.LibraryManifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Write stores m at path, creating parent directories.
func Write(path string, m *models.LibraryManifest) error {
	data, err := Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest written by Write.
func Load(path string) (*models.LibraryManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m models.LibraryManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.IDToSlug == nil {
		m.IDToSlug = map[string]string{}
	}
	if m.SlugToID == nil {
		m.SlugToID = map[string]string{}
	}
	if m.SlugToTitle == nil {
		m.SlugToTitle = map[string]string{}
	}
	return &m, nil
}
