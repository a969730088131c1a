package models

// LibraryManifestEntry is one library's identity as recorded at build time.
// Folder is the on-disk name the entry was read from, kept for lookups after a title edit.
type LibraryManifestEntry struct {
	LibraryID string `json:"library_id"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Folder    string `json:"folder"`
}

// LibraryManifest is the build artifact mapping ids, slugs and titles.
type LibraryManifest struct {
	Libraries     []LibraryManifestEntry `json:"libraries"`
	IDToSlug      map[string]string      `json:"idToSlug"`
	SlugToID      map[string]string      `json:"slugToId"`
	SlugToTitle   map[string]string      `json:"slugToTitle"`
	FolderSlugMap map[string]string      `json:"folderSlugMap,omitempty"`
}
