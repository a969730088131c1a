package libraryurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name string
		ref  Ref
		want string
	}{
		{"canonical", Ref{LibraryID: "73", Slug: "example-library"}, "/library/00073/example-library/"},
		{"id fallback field", Ref{ID: "5", Slug: "test"}, "/library/00005/test/"},
		{"already padded", Ref{LibraryID: "00042", Slug: "string-id"}, "/library/00042/string-id/"},
		{"library_id preferred", Ref{LibraryID: "1", ID: "2", Slug: "x"}, "/library/00001/x/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URL(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURL_missingIDIsInvalidReference(t *testing.T) {
	_, err := URL(Ref{Slug: "no-id"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidReference)

	_, err = LegacyURL(Ref{Slug: "no-id"})
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestLegacyURL(t *testing.T) {
	got, err := LegacyURL(Ref{LibraryID: "73", Slug: "example-library"})
	require.NoError(t, err)
	assert.Equal(t, "/library/00073-example-library", got)
}

func TestParseLegacySingleParam(t *testing.T) {
	tests := []struct {
		param  string
		want   Parts
		wantOK bool
	}{
		{"00073-example-library", Parts{LibraryID: "00073", Slug: "00073-example-library"}, true},
		{"00073", Parts{LibraryID: "00073", Slug: "00073"}, true},
		{"123456-long", Parts{LibraryID: "123456", Slug: "123456-long"}, true},
		{"example-library", Parts{Slug: "example-library"}, true},
		{"123-", Parts{}, false},
		{"00073-", Parts{}, false},
		{"1-short-id", Parts{}, false},
		{"1234", Parts{}, false},
		{"", Parts{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseLegacySingleParam(tt.param)
		assert.Equal(t, tt.wantOK, ok, "ok for %q", tt.param)
		assert.Equal(t, tt.want, got, "parts for %q", tt.param)
	}
}

func TestURLFormatClassifier(t *testing.T) {
	tests := []struct {
		param  string
		legacy bool
	}{
		{"example-library", true},
		{"library-name", true},
		{"simple", true},
		{"00073-example", false},
		{"12345-library", false},
		{"1-short-id", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.legacy, IsLegacyURLFormat(tt.param), "IsLegacyURLFormat(%q)", tt.param)
		assert.False(t, IsNewURLFormat(tt.param))
	}
}

func TestExtractHelpers(t *testing.T) {
	assert.Equal(t, "00073-example-library", ExtractSlug("00073-example-library"))
	assert.Equal(t, "example-library", ExtractSlug("example-library"))
	assert.Equal(t, "00073", ExtractSlug("00073"))
	assert.Equal(t, "123-", ExtractSlug("123-"))

	assert.Equal(t, "00073", ExtractLibraryID("00073-example"))
	assert.Equal(t, "", ExtractLibraryID("example-library"))
	assert.Equal(t, "00073", ExtractLibraryID("00073"))
}
