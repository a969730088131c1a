package libraryurl

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidReference is returned when a library has no usable identifier.
// It indicates corrupt upstream data, not a normal miss.
var ErrInvalidReference = errors.New("invalid library reference")

// Prefix is the path prefix of library pages.
const Prefix = "/library/"

// Ref is the minimum a caller needs to build a library URL.
// LibraryID is preferred; ID is the alternative field name.
type Ref struct {
	LibraryID string
	ID        string
	Slug      string
}

func (r Ref) id() (string, error) {
	if r.LibraryID != "" {
		return r.LibraryID, nil
	}
	if r.ID != "" {
		return r.ID, nil
	}
	return "", fmt.Errorf("library %q has neither library_id nor id: %w", r.Slug, ErrInvalidReference)
}

// URL returns the canonical "/library/{paddedId}/{slug}/" form.
func URL(ref Ref) (string, error) {
	id, err := ref.id()
	if err != nil {
		return "", err
	}
	return Prefix + PadLibraryID(id) + "/" + ref.Slug + "/", nil
}

// LegacyURL returns the older hyphen-joined "/library/{paddedId}-{slug}" form.
func LegacyURL(ref Ref) (string, error) {
	id, err := ref.id()
	if err != nil {
		return "", err
	}
	return Prefix + PadLibraryID(id) + "-" + ref.Slug, nil
}

// Parts is a library id and slug extracted from a URL parameter.
// LibraryID is empty for pure legacy slugs.
type Parts struct {
	LibraryID string `json:"library_id"`
	Slug      string `json:"slug"`
}

var (
	idSlugParam = regexp.MustCompile(`^(\d{5,})-(.+)$`)
	idOnlyParam = regexp.MustCompile(`^(\d{5,})$`)
)

// ParseLegacySingleParam parses a single-segment library parameter:
// "{id}-{rest}" and "{id}" (id of five or more digits) keep the whole param as
// slug; a param not starting with a digit is a pure legacy slug. Any other
// shape reports ok=false and must be treated as not found.
func ParseLegacySingleParam(param string) (Parts, bool) {
	if param == "" {
		return Parts{}, false
	}
	if m := idSlugParam.FindStringSubmatch(param); m != nil {
		return Parts{LibraryID: m[1], Slug: param}, true
	}
	if m := idOnlyParam.FindStringSubmatch(param); m != nil {
		return Parts{LibraryID: m[1], Slug: param}, true
	}
	if !startsWithDigit(param) {
		return Parts{Slug: param}, true
	}
	return Parts{}, false
}

// IsLegacyURLFormat reports whether param is a slug-only legacy parameter.
// Legacy slugs that begin with a digit are not detected.
func IsLegacyURLFormat(param string) bool {
	return param != "" && !startsWithDigit(param)
}

// IsNewURLFormat is retained for callers of the hyphen-joined format check.
//
// Deprecated: the canonical form is two path segments; this always reports false.
func IsNewURLFormat(string) bool { return false }

// ExtractSlug returns the slug parsed from param, or param itself.
func ExtractSlug(param string) string {
	if p, ok := ParseLegacySingleParam(param); ok && p.Slug != "" {
		return p.Slug
	}
	return param
}

// ExtractLibraryID returns the library id parsed from param, or "".
func ExtractLibraryID(param string) string {
	if p, ok := ParseLegacySingleParam(param); ok {
		return p.LibraryID
	}
	return ""
}
