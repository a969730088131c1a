// Package indexer keeps the primary content index in step with the content
// tree: library documents and their logbook entries.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/puzzlepages/shelf/internal/content"
	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/internal/storage"
	"github.com/puzzlepages/shelf/pkg/utils"
)

// Result counts what one IndexAll pass did.
type Result struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Indexer writes content documents into storage.
type Indexer struct {
	storage storage.Storage
	reader  content.Reader
	logger  *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for per-file debug output and failures.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer reading from reader into store.
func NewIndexer(store storage.Storage, reader content.Reader, opts ...IndexerOption) *Indexer {
	idx := &Indexer{storage: store, reader: reader}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// Refresh runs IndexAll and discards the counts.
func (idx *Indexer) Refresh(ctx context.Context) error {
	_, err := idx.IndexAll(ctx)
	return err
}

// IndexAll indexes every library and logbook file, skipping files whose
// mtime and size match the stored row, and removes rows whose file is gone.
// A missing content root removes everything.
func (idx *Indexer) IndexAll(ctx context.Context) (Result, error) {
	var res Result
	ids, err := idx.reader.Identities()
	if err != nil {
		if !errors.Is(err, content.ErrStorageUnavailable) {
			return res, err
		}
		idx.logger.Warn("content root unavailable", zap.String("root", idx.reader.Root()), zap.Error(err))
	}

	seen := make(map[string]bool)
	for _, identity := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		path := idx.reader.LogicalPath(identity)
		// A failed library document loses its stored row but still has its
		// logbook indexed, with no library id.
		libraryID, err := idx.indexFile(ctx, &res, path, idx.reader.SourcePath(identity), func(fm map[string]any) string {
			return content.DocLibraryID(&models.RawLibraryDoc{Identity: identity, Frontmatter: fm}, idx.reader.Layout())
		})
		if err == nil {
			seen[path] = true
		}

		entries, err := idx.reader.Logbook(identity)
		if err != nil {
			idx.logger.Warn("reading logbook", zap.String("identity", identity), zap.Error(err))
			continue
		}
		for _, e := range entries {
			if _, err := idx.indexFile(ctx, &res, e.LogicalPath, e.SourcePath, func(map[string]any) string { return libraryID }); err == nil {
				seen[e.LogicalPath] = true
			}
		}
	}

	paths, err := idx.storage.ListPaths(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list indexed paths: %w", err)
	}
	for _, p := range paths {
		if seen[p] {
			continue
		}
		if err := idx.storage.DeleteDocument(ctx, p); err != nil {
			return res, fmt.Errorf("failed to delete %s: %w", p, err)
		}
		idx.logger.Debug("indexer removed vanished document", zap.String("path", p))
		res.Removed++
	}

	idx.logger.Info("content indexed",
		zap.Int("indexed", res.Indexed),
		zap.Int("skipped", res.Skipped),
		zap.Int("removed", res.Removed),
		zap.Int("failed", res.Failed))
	return res, nil
}

// indexFile stores one markdown file at logical path and returns the library
// id recorded for it. Unchanged files are skipped and keep their stored id.
func (idx *Indexer) indexFile(ctx context.Context, res *Result, path, sourcePath string, libraryID func(map[string]any) string) (string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		res.Failed++
		idx.logger.Warn("stat content file", zap.String("path", sourcePath), zap.Error(err))
		return "", err
	}
	if stored, ok := idx.unchanged(ctx, path, sourcePath, info); ok {
		res.Skipped++
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", sourcePath))
		return stored.LibraryID, nil
	}

	fm, body, err := content.ParseFile(sourcePath)
	if err != nil {
		res.Failed++
		idx.logger.Warn("skipping malformed content", zap.String("path", sourcePath), zap.Error(err))
		return "", err
	}
	id := libraryID(fm)
	doc := &models.ContentDoc{
		Path:        path,
		LibraryID:   id,
		Title:       content.Title(fm),
		Frontmatter: fm,
		Body:        body,
		SourcePath:  sourcePath,
		SourceMtime: info.ModTime().UnixNano(),
		SourceSize:  info.Size(),
	}
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		res.Failed++
		return "", fmt.Errorf("failed to store %s: %w", path, err)
	}
	res.Indexed++
	idx.logger.Debug("indexer file indexed", zap.String("path", sourcePath), zap.String("logical_path", path))
	return id, nil
}

// unchanged reports whether path is stored from the same file with the same mtime and size.
func (idx *Indexer) unchanged(ctx context.Context, path, sourcePath string, info os.FileInfo) (*models.ContentDoc, bool) {
	doc, err := idx.storage.GetDocument(ctx, path)
	if err != nil {
		return nil, false
	}
	if doc.SourcePath != sourcePath || doc.SourceMtime != info.ModTime().UnixNano() || doc.SourceSize != info.Size() {
		return nil, false
	}
	return doc, true
}
