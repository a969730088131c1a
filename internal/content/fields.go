package content

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/puzzlepages/shelf/internal/libraryurl"
	"github.com/puzzlepages/shelf/internal/models"
)

// LibraryID returns the frontmatter library_id rendered zero-padded, or "" when
// absent. Non-numeric ids are kept verbatim.
func LibraryID(fm map[string]any) string {
	v, ok := fm["library_id"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return ""
		}
		if !libraryurl.AllDigits(s) {
			return s
		}
	}
	return libraryurl.PadLibraryID(v)
}

// DocLibraryID resolves a document's library id: the frontmatter value, or for
// the flat layout the numeric file stem.
func DocLibraryID(doc *models.RawLibraryDoc, layout Layout) string {
	if id := LibraryID(doc.Frontmatter); id != "" {
		return id
	}
	if layout == LayoutFlat && flatFile.MatchString(doc.Identity+".md") {
		return libraryurl.PadLibraryID(doc.Identity)
	}
	return ""
}

// Title returns the trimmed frontmatter title, or "".
func Title(fm map[string]any) string {
	return strings.TrimSpace(stringValue(fm["title"]))
}

// TitleOr returns the frontmatter title, or "Library {id}" when it is absent.
func TitleOr(fm map[string]any, libraryID string) string {
	if t := Title(fm); t != "" {
		return t
	}
	return "Library " + libraryID
}

// Photo returns the raw frontmatter photo reference.
func Photo(fm map[string]any) string {
	return strings.TrimSpace(stringValue(fm["photo"]))
}

// Tags returns the frontmatter tags in authoring order. A scalar string is
// treated as a comma-separated list.
func Tags(fm map[string]any) []string {
	switch v := fm["tags"].(type) {
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s := strings.TrimSpace(stringValue(t)); s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	case []string:
		return append([]string(nil), v...)
	case string:
		var tags []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return []string{}
}

// Location returns the frontmatter location, or nil when lat/lng are missing.
func Location(fm map[string]any) *models.Location {
	m, ok := fm["location"].(map[string]any)
	if !ok {
		return nil
	}
	lat, okLat := floatValue(m["lat"])
	lng, okLng := floatValue(m["lng"])
	if !okLat || !okLng {
		return nil
	}
	return &models.Location{Lat: lat, Lng: lng, Address: strings.TrimSpace(stringValue(m["address"]))}
}

// Images returns additional gallery references listed in frontmatter.
func Images(fm map[string]any) []string {
	list, ok := fm["images"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s := strings.TrimSpace(stringValue(v)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
