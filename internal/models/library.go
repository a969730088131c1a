// Package models defines core data structures for libraries, manifests, and search.
package models

import "time"

// Location is a coordinate pair with an optional street address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// LibraryRecord is the canonical in-memory unit for one library.
// It is never mutated after derivation; rebuilds produce new records.
type LibraryRecord struct {
	LibraryID    string         `json:"library_id"`
	Slug         string         `json:"slug"`
	Title        string         `json:"title"`
	Location     *Location      `json:"location,omitempty"`
	Photo        string         `json:"photo"`
	Tags         []string       `json:"tags"`
	Description  string         `json:"description"`
	Images       []string       `json:"images"`
	Path         string         `json:"_path"`
	Folder       string         `json:"folder"`
	LogbookCount int            `json:"entries_count"`
	LastModified time.Time      `json:"lastModified,omitempty"`
	Frontmatter  map[string]any `json:"frontmatter,omitempty"`
	Body         string         `json:"-"`
}

// LibrarySummary is the list-view projection of a library.
type LibrarySummary struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Location    *Location `json:"location,omitempty"`
	Photo       string    `json:"photo"`
	Tags        []string  `json:"tags"`
	Description string    `json:"description"`
	Path        string    `json:"_path"`
	LibraryID   string    `json:"library_id"`
}

// LibraryDetail is the single-item projection: summary fields plus the full body.
type LibraryDetail struct {
	LibrarySummary
	Images       []string       `json:"images"`
	FullContent  string         `json:"fullContent"`
	Frontmatter  map[string]any `json:"frontmatter"`
	LogbookCount int            `json:"entries_count"`
	LastModified time.Time      `json:"lastModified,omitempty"`
}

// Summary projects r to its list view.
func (r *LibraryRecord) Summary() LibrarySummary {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return LibrarySummary{
		Slug:        r.Slug,
		Title:       r.Title,
		Location:    r.Location,
		Photo:       r.Photo,
		Tags:        tags,
		Description: r.Description,
		Path:        r.Path,
		LibraryID:   r.LibraryID,
	}
}

// Detail projects r to its single-item view.
func (r *LibraryRecord) Detail() *LibraryDetail {
	fm := r.Frontmatter
	if fm == nil {
		fm = map[string]any{}
	}
	images := r.Images
	if images == nil {
		images = []string{}
	}
	return &LibraryDetail{
		LibrarySummary: r.Summary(),
		Images:         images,
		FullContent:    r.Body,
		Frontmatter:    fm,
		LogbookCount:   r.LogbookCount,
		LastModified:   r.LastModified,
	}
}

// RawLibraryDoc is one library's stored frontmatter and body as read from disk.
// Identity is the directory name (directory layout) or the file stem (flat layout).
type RawLibraryDoc struct {
	Identity    string
	Frontmatter map[string]any
	Body        string
	SourcePath  string
	ModTime     time.Time
	Size        int64
}
