package models

import "time"

// ContentDoc is one markdown document in the primary content index.
// Path is the logical content path (e.g. "/libraries/00001"), not a filesystem path.
type ContentDoc struct {
	Path        string         `json:"_path"`
	LibraryID   string         `json:"library_id,omitempty"`
	Title       string         `json:"title,omitempty"`
	Frontmatter map[string]any `json:"frontmatter"`
	Body        string         `json:"body"`
	SourcePath  string         `json:"source_path"`
	SourceMtime int64          `json:"source_mtime"`
	SourceSize  int64          `json:"source_size"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
