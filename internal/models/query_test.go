package models

import (
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
	}{
		{"empty query", &SearchQuery{Query: ""}, true},
		{"valid query", &SearchQuery{Query: "hello"}, false},
		{"sets default limit", &SearchQuery{Query: "x", Limit: 0}, false},
		{"caps limit at 100", &SearchQuery{Query: "x", Limit: 200}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if tt.query.Limit == 0 {
					t.Error("expected default limit to be set")
				}
				if tt.query.Limit > 100 {
					t.Errorf("expected limit capped at 100, got %d", tt.query.Limit)
				}
			}
		})
	}
}

func TestLibraryRecord_Summary(t *testing.T) {
	r := &LibraryRecord{LibraryID: "00001", Slug: "corner", Title: "Corner", Path: "/libraries/00001"}
	s := r.Summary()
	if s.Tags == nil {
		t.Error("summary tags should be an empty slice, not nil")
	}
	if s.LibraryID != "00001" || s.Path != "/libraries/00001" {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestLibraryRecord_Detail(t *testing.T) {
	r := &LibraryRecord{LibraryID: "00002", Body: "Hello", LogbookCount: 3}
	d := r.Detail()
	if d.FullContent != "Hello" {
		t.Errorf("FullContent = %q", d.FullContent)
	}
	if d.Frontmatter == nil || d.Images == nil {
		t.Error("detail maps and slices should be non-nil")
	}
	if d.LogbookCount != 3 {
		t.Errorf("LogbookCount = %d", d.LogbookCount)
	}
}
