// Package cli provides output helpers for the shelf command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/puzzlepages/shelf/internal/maintenance"
	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per item.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteLibraries writes library summaries to w in the given format.
func WriteLibraries(w io.Writer, libraries []models.LibrarySummary, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, libraries)
	case OutputCompact:
		for _, l := range libraries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", l.LibraryID, l.Slug, l.Title)
		}
		return nil
	default:
		fmt.Fprintf(w, "\n%d libraries\n\n", len(libraries))
		for _, l := range libraries {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "%s  %s\n", l.LibraryID, l.Title)
			fmt.Fprintf(w, "Path: %s\n", l.Path)
			if len(l.Tags) > 0 {
				fmt.Fprintf(w, "Tags: %s\n", strings.Join(l.Tags, ", "))
			}
			if l.Description != "" {
				fmt.Fprintf(w, "\n%s\n", utils.Truncate(l.Description, 200))
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", r.Rank, r.Score, r.Library.LibraryID, r.Library.Slug)
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
		for _, r := range response.Results {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", r.Rank, r.Score)
			fmt.Fprintf(w, "%s  %s\n", r.Library.LibraryID, r.Library.Title)
			if r.Library.Description != "" {
				fmt.Fprintf(w, "\n%s\n", utils.Truncate(r.Library.Description, 200))
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}

// WriteResizeReport summarises a resize run.
func WriteResizeReport(w io.Writer, report *maintenance.ResizeReport) {
	verb := "Resized"
	if report.DryRun {
		verb = "Would resize"
	}
	for _, img := range report.Resized {
		fmt.Fprintf(w, "%s %s: %dx%d -> %dx%d (%s -> %s)\n", verb, img.Path,
			img.Width, img.Height, img.NewWidth, img.NewHeight,
			humanize.IBytes(uint64(img.BytesFrom)), humanize.IBytes(uint64(max(img.BytesTo, 0))))
	}
	for path, err := range report.Failed {
		fmt.Fprintf(w, "Failed %s: %v\n", path, err)
	}
	fmt.Fprintf(w, "%s %d of %d image(s)", verb, len(report.Resized), report.Scanned)
	if saved := report.BytesSaved(); saved > 0 {
		fmt.Fprintf(w, ", saved %s", humanize.IBytes(uint64(saved)))
	}
	fmt.Fprintln(w)
}
