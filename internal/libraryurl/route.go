package libraryurl

import (
	"regexp"
	"strings"
)

// Shape identifies which URL convention a library path uses.
type Shape int

const (
	// ShapeCanonical is "/library/{id}/{slug}/".
	ShapeCanonical Shape = iota + 1
	// ShapeHyphenLegacy is "/library/{id}-{slug}" or "/library/{id}".
	ShapeHyphenLegacy
	// ShapeSlugLegacy is "/library/{slug}".
	ShapeSlugLegacy
)

func (s Shape) String() string {
	switch s {
	case ShapeCanonical:
		return "canonical"
	case ShapeHyphenLegacy:
		return "hyphen-legacy"
	case ShapeSlugLegacy:
		return "slug-legacy"
	default:
		return "unknown"
	}
}

// Route is a parsed library path.
type Route struct {
	Shape     Shape
	LibraryID string
	Slug      string
	// Param is the raw single segment for legacy shapes.
	Param         string
	TrailingSlash bool
}

// Canonical reports whether r is already in canonical form with a trailing slash.
func (r Route) Canonical() bool { return r.Shape == ShapeCanonical && r.TrailingSlash }

type shapeParser struct {
	shape Shape
	parse func(segments []string) (Route, bool)
}

var canonicalID = regexp.MustCompile(`^\d{5,}$`)

// shapes is tried in order; the first structural match wins.
var shapes = []shapeParser{
	{ShapeCanonical, parseCanonical},
	{ShapeHyphenLegacy, parseHyphenLegacy},
	{ShapeSlugLegacy, parseSlugLegacy},
}

// ParseRoute classifies a request path under Prefix.
func ParseRoute(path string) (Route, bool) {
	if !strings.HasPrefix(path, Prefix) {
		return Route{}, false
	}
	rest := strings.TrimPrefix(path, Prefix)
	trailing := strings.HasSuffix(rest, "/")
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return Route{}, false
	}
	segments := strings.Split(rest, "/")
	for _, s := range shapes {
		if r, ok := s.parse(segments); ok {
			r.Shape = s.shape
			r.TrailingSlash = trailing
			return r, true
		}
	}
	return Route{}, false
}

func parseCanonical(segments []string) (Route, bool) {
	if len(segments) != 2 || !canonicalID.MatchString(segments[0]) || segments[1] == "" {
		return Route{}, false
	}
	return Route{LibraryID: segments[0], Slug: segments[1]}, true
}

func parseHyphenLegacy(segments []string) (Route, bool) {
	if len(segments) != 1 {
		return Route{}, false
	}
	p, ok := ParseLegacySingleParam(segments[0])
	if !ok || p.LibraryID == "" {
		return Route{}, false
	}
	slug := strings.TrimPrefix(strings.TrimPrefix(segments[0], p.LibraryID), "-")
	return Route{LibraryID: p.LibraryID, Slug: slug, Param: segments[0]}, true
}

func parseSlugLegacy(segments []string) (Route, bool) {
	if len(segments) != 1 {
		return Route{}, false
	}
	p, ok := ParseLegacySingleParam(segments[0])
	if !ok || p.LibraryID != "" {
		return Route{}, false
	}
	return Route{Slug: p.Slug, Param: segments[0]}, true
}
