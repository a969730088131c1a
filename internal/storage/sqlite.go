package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/puzzlepages/shelf/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS content (
		path TEXT PRIMARY KEY,
		library_id TEXT,
		title TEXT,
		frontmatter TEXT,
		body TEXT NOT NULL,
		source_path TEXT NOT NULL,
		source_mtime INTEGER NOT NULL,
		source_size INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_content_library_id ON content(library_id);
	`
	_, err := db.Exec(schema)
	return err
}

const selectColumns = `SELECT path, library_id, title, frontmatter, body, source_path, source_mtime, source_size, updated_at FROM content`

// UpsertDocument inserts doc or replaces the row at doc.Path.
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *models.ContentDoc) error {
	fmJSON, err := json.Marshal(doc.Frontmatter)
	if err != nil {
		return fmt.Errorf("failed to marshal frontmatter: %w", err)
	}
	doc.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO content (path, library_id, title, frontmatter, body, source_path, source_mtime, source_size, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			library_id = excluded.library_id,
			title = excluded.title,
			frontmatter = excluded.frontmatter,
			body = excluded.body,
			source_path = excluded.source_path,
			source_mtime = excluded.source_mtime,
			source_size = excluded.source_size,
			updated_at = excluded.updated_at`,
		doc.Path, doc.LibraryID, doc.Title, string(fmJSON), doc.Body,
		doc.SourcePath, doc.SourceMtime, doc.SourceSize, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns the document at a logical path.
func (s *SQLiteStorage) GetDocument(ctx context.Context, path string) (*models.ContentDoc, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE path = ?`, path)
	doc, err := scanDoc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return doc, err
}

// DeleteDocument removes the document at path.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM content WHERE path = ?`, path)
	return err
}

// FindByPrefix returns documents whose path starts with prefix, ordered by path.
func (s *SQLiteStorage) FindByPrefix(ctx context.Context, prefix string) ([]*models.ContentDoc, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE path LIKE ? ESCAPE '\' ORDER BY path`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	return scanDocs(rows)
}

// FindByLibraryID returns every document stored under libraryID: the library
// itself and its logbook entries.
func (s *SQLiteStorage) FindByLibraryID(ctx context.Context, libraryID string) ([]*models.ContentDoc, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE library_id = ? ORDER BY path`, libraryID)
	if err != nil {
		return nil, err
	}
	return scanDocs(rows)
}

// ListPaths returns every stored path.
func (s *SQLiteStorage) ListPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM content ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDoc(row scanner) (*models.ContentDoc, error) {
	var doc models.ContentDoc
	var libraryID, title, fmJSON sql.NullString
	if err := row.Scan(&doc.Path, &libraryID, &title, &fmJSON, &doc.Body,
		&doc.SourcePath, &doc.SourceMtime, &doc.SourceSize, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.LibraryID = libraryID.String
	doc.Title = title.String
	if fmJSON.String != "" && fmJSON.String != "null" {
		if err := json.Unmarshal([]byte(fmJSON.String), &doc.Frontmatter); err != nil {
			return nil, fmt.Errorf("failed to unmarshal frontmatter for %s: %w", doc.Path, err)
		}
	}
	return &doc, nil
}

func scanDocs(rows *sql.Rows) ([]*models.ContentDoc, error) {
	defer rows.Close()
	var docs []*models.ContentDoc
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
