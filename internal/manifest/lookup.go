package manifest

import (
	"github.com/puzzlepages/shelf/internal/libraryurl"
	"github.com/puzzlepages/shelf/internal/models"
)

// SlugForID returns the current slug of a library id in any padding.
func SlugForID(m *models.LibraryManifest, id string) (string, bool) {
	if m == nil || id == "" {
		return "", false
	}
	if s, ok := m.IDToSlug[id]; ok {
		return s, true
	}
	s, ok := m.IDToSlug[libraryurl.PadLibraryID(id)]
	return s, ok
}

// ResolveLegacySlug maps a pure legacy slug to a library id, checking current
// slugs first and then legacy folder names.
func ResolveLegacySlug(m *models.LibraryManifest, slug string) (string, bool) {
	if m == nil || slug == "" {
		return "", false
	}
	if id, ok := m.SlugToID[slug]; ok {
		return id, true
	}
	if _, ok := m.FolderSlugMap[slug]; !ok {
		return "", false
	}
	for _, e := range m.Libraries {
		if e.Folder == slug {
			return e.LibraryID, true
		}
	}
	return "", false
}

// CanonicalURL returns the canonical URL for a library id.
func CanonicalURL(m *models.LibraryManifest, id string) (string, bool) {
	slug, ok := SlugForID(m, id)
	if !ok {
		return "", false
	}
	u, err := libraryurl.URL(libraryurl.Ref{LibraryID: id, Slug: slug})
	if err != nil {
		return "", false
	}
	return u, true
}
