// package formatter renders tag exports as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/moodring/backend/internal/models"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want csv, md, txt or json)", s)
	}
}

// Render converts export to the given format.
func Render(export *models.TagExport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	case FormatJSON:
		return ExportToJSON(export)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportToCSV writes one row per association with columns: Tag ID, Tag, Color, Song ID.
//
// Tags without tracks still get a row with an empty Song ID so they survive a round trip.
func ExportToCSV(export *models.TagExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Tag ID", "Tag", "Color", "Song ID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, tt := range export.Tags {
		id := strconv.FormatInt(tt.Tag.ID, 10)
		color := colorOf(tt.Tag)

		if len(tt.TrackIDs) == 0 {
			if err := writer.Write([]string{id, tt.Tag.Name, color, ""}); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
			continue
		}
		for _, trackID := range tt.TrackIDs {
			if err := writer.Write([]string{id, tt.Tag.Name, color, trackID}); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading per tag followed by its tracks as a list.
func ExportToMarkdown(export *models.TagExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Tags for %s\n\n", export.ExternalID))
	buf.WriteString(fmt.Sprintf("**Exported**: %s\n", export.ExportedAt.UTC().Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Tags**: %d\n", len(export.Tags)))
	buf.WriteString(fmt.Sprintf("**Tagged tracks**: %d\n", export.TrackCount()))

	for _, tt := range export.Tags {
		buf.WriteString(fmt.Sprintf("\n## %s", tt.Tag.Name))
		if c := colorOf(tt.Tag); c != "" {
			buf.WriteString(fmt.Sprintf(" `%s`", c))
		}
		buf.WriteString("\n\n")

		if len(tt.TrackIDs) == 0 {
			buf.WriteString("_No tracks_\n")
			continue
		}
		for _, trackID := range tt.TrackIDs {
			buf.WriteString(fmt.Sprintf("- [%s](https://open.spotify.com/track/%s)\n", trackID, trackID))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts an export to plain text format
func ExportToText(export *models.TagExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("User: %s\n", export.ExternalID))
	buf.WriteString(fmt.Sprintf("Tags: %d\n\n", len(export.Tags)))

	for i, tt := range export.Tags {
		buf.WriteString(fmt.Sprintf("%d. %s (%d tracks)\n", i+1, tt.Tag.Name, len(tt.TrackIDs)))
		for _, trackID := range tt.TrackIDs {
			buf.WriteString(fmt.Sprintf("   %s\n", trackID))
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the export as indented JSON.
func ExportToJSON(export *models.TagExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport renders export and writes it to path.
//
// Defaults to moodring_tags.{format} as the filename.
func WriteExport(export *models.TagExport, format Format, path string) (string, error) {
	if path == "" {
		path = "moodring_tags." + string(format)
	}

	data, err := Render(export, format)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func colorOf(tag models.Tag) string {
	if tag.Color == nil {
		return ""
	}
	return *tag.Color
}
