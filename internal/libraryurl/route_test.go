package libraryurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoute(t *testing.T) {
	tests := []struct {
		path      string
		ok        bool
		shape     Shape
		id        string
		slug      string
		canonical bool
	}{
		{"/library/00073/example-library/", true, ShapeCanonical, "00073", "example-library", true},
		{"/library/00073/example-library", true, ShapeCanonical, "00073", "example-library", false},
		{"/library/00073-example-library", true, ShapeHyphenLegacy, "00073", "example-library", false},
		{"/library/00073", true, ShapeHyphenLegacy, "00073", "", false},
		{"/library/example-library", true, ShapeSlugLegacy, "", "example-library", false},
		{"/library/1-short-id", false, 0, "", "", false},
		{"/library/123/x/", false, 0, "", "", false},
		{"/library/", false, 0, "", "", false},
		{"/libraries/00073/x/", false, 0, "", "", false},
		{"/library/00073/a/b/", false, 0, "", "", false},
	}
	for _, tt := range tests {
		r, ok := ParseRoute(tt.path)
		assert.Equal(t, tt.ok, ok, "ok for %q", tt.path)
		if !ok {
			continue
		}
		assert.Equal(t, tt.shape, r.Shape, "shape for %q", tt.path)
		assert.Equal(t, tt.id, r.LibraryID, "id for %q", tt.path)
		assert.Equal(t, tt.slug, r.Slug, "slug for %q", tt.path)
		assert.Equal(t, tt.canonical, r.Canonical(), "canonical for %q", tt.path)
	}
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "canonical", ShapeCanonical.String())
	assert.Equal(t, "hyphen-legacy", ShapeHyphenLegacy.String())
	assert.Equal(t, "slug-legacy", ShapeSlugLegacy.String())
	assert.Equal(t, "unknown", Shape(0).String())
}
