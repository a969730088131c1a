package libraryurl

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Café — Books!", "cafe-books"},
		{"Example Library", "example-library"},
		{"  --Leading and trailing--  ", "leading-and-trailing"},
		{"Über   Straße 12", "uber-stra-e-12"},
		{"Crème brûlée", "creme-brulee"},
		{"1803 E 1st Ave", "1803-e-1st-ave"},
		{"", ""},
		{"!!!", ""},
		{"Ñandú", "nandu"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}

func TestSlugify_onlyLowercaseDigitsAndSingleHyphens(t *testing.T) {
	valid := regexp.MustCompile(`^([a-z0-9]+(-[a-z0-9]+)*)?$`)
	inputs := []string{
		"Café — Books!", "A__B", "x -- y", "Ça va? Oui!", "日本語 library", "tab\tseparated\nlines", "ＦＵＬＬ width",
	}
	for _, in := range inputs {
		got := Slugify(in)
		assert.Regexp(t, valid, got, "Slugify(%q)", in)
	}
}

func TestLibrarySlug(t *testing.T) {
	assert.Equal(t, "corner-shelf", LibrarySlug("Corner Shelf", "ignored", "00001"))
	assert.Equal(t, "corner-shelf", LibrarySlug("", "Corner_Shelf", "00001"))
	assert.Equal(t, "cafe-box", LibrarySlug("***", "Café Box", "00001"))
	assert.Equal(t, "00007", LibrarySlug("", "", "00007"))
	assert.Equal(t, "", LibrarySlug("", "", ""))
}
