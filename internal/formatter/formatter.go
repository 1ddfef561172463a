// package formatter renders provider listings (top tracks, albums) as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/linkd/internal/services"
	"github.com/desertthunder/linkd/internal/shared"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or its common alias ("md", "txt").
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, name)
}

// Tracks renders top tracks in format f.
func Tracks(f Format, tracks []services.TopTrack) ([]byte, error) {
	switch f {
	case FormatCSV:
		return TracksToCSV(tracks)
	case FormatMarkdown:
		return TracksToMarkdown(tracks), nil
	case FormatJSON:
		return shared.MarshalJSON(map[string]any{"tracks": tracks}, true)
	default:
		return TracksToText(tracks), nil
	}
}

// Albums renders albums in format f.
func Albums(f Format, albums []services.Album) ([]byte, error) {
	switch f {
	case FormatCSV:
		return AlbumsToCSV(albums)
	case FormatMarkdown:
		return AlbumsToMarkdown(albums), nil
	case FormatJSON:
		return shared.MarshalJSON(map[string]any{"albums": albums}, true)
	default:
		return AlbumsToText(albums), nil
	}
}

// TracksToCSV converts top tracks to CSV with columns: Name, Artists, Album, URL, Image.
//
// Multiple artists share one cell, separated by "; ".
func TracksToCSV(tracks []services.TopTrack) ([]byte, error) {
	rows := make([][]string, 0, len(tracks))
	for _, track := range tracks {
		rows = append(rows, []string{
			track.Name,
			strings.Join(track.Artists, "; "),
			track.Album,
			track.URL,
			track.Image,
		})
	}
	return writeCSV([]string{"Name", "Artists", "Album", "URL", "Image"}, rows)
}

// TracksToMarkdown converts top tracks to a numbered Markdown list linking each track.
func TracksToMarkdown(tracks []services.TopTrack) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Top tracks\n\n")
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(tracks)))

	for i, track := range tracks {
		title := track.Name
		if track.URL != "" {
			title = fmt.Sprintf("[%s](%s)", track.Name, track.URL)
		}
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s\n", i+1, strings.Join(track.Artists, ", "), title, albumPart))
	}

	return buf.Bytes()
}

// TracksToText converts top tracks to plain text.
func TracksToText(tracks []services.TopTrack) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Top tracks: %d\n\n", len(tracks)))
	for i, track := range tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, strings.Join(track.Artists, ", "), track.Name))
	}

	return buf.Bytes()
}

// AlbumsToCSV converts albums to CSV with columns: ID, Title, Items, URL.
func AlbumsToCSV(albums []services.Album) ([]byte, error) {
	rows := make([][]string, 0, len(albums))
	for _, album := range albums {
		rows = append(rows, []string{album.ID, album.Title, album.MediaItemsCount, album.ProductURL})
	}
	return writeCSV([]string{"ID", "Title", "Items", "URL"}, rows)
}

// AlbumsToMarkdown converts albums to a Markdown table, which is handy for picking album_id.
func AlbumsToMarkdown(albums []services.Album) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Albums\n\n")
	buf.WriteString("| Title | Items | ID |\n|---|---|---|\n")
	for _, album := range albums {
		buf.WriteString(fmt.Sprintf("| %s | %s | `%s` |\n", escapeCell(album.Title), itemCount(album), album.ID))
	}

	return buf.Bytes()
}

// AlbumsToText converts albums to plain text.
func AlbumsToText(albums []services.Album) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Albums: %d\n\n", len(albums)))
	for i, album := range albums {
		buf.WriteString(fmt.Sprintf("%d. %s [%s items]\n   %s\n", i+1, album.Title, itemCount(album), album.ID))
	}

	return buf.Bytes()
}

// WriteFile writes rendered output to path, creating or truncating it.
func WriteFile(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range rows {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func itemCount(a services.Album) string {
	if a.MediaItemsCount == "" {
		return "0"
	}
	return a.MediaItemsCount
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
