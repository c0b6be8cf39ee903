// package formatter renders listening statistics as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name or its common aliases (txt, md).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want text, json, csv or markdown)", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension conventionally used for f.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

// SongsToCSV converts songs to CSV with columns: Rank, Song ID, Track, Artist, Album, Plays, Minutes
func SongsToCSV(songs []models.Song) ([]byte, error) {
	rows := make([][]string, 0, len(songs))
	for i, s := range songs {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(s.SongID),
			s.TrackName,
			s.ArtistName,
			s.AlbumName,
			strconv.Itoa(s.PlayCount),
			minutes(s.MsPlayed),
		})
	}
	return writeCSV([]string{"Rank", "Song ID", "Track", "Artist", "Album", "Plays", "Minutes"}, rows)
}

// ArtistsToCSV converts artists to CSV with columns: Rank, Artist ID, Name, Streams
func ArtistsToCSV(artists []models.Artist) ([]byte, error) {
	rows := make([][]string, 0, len(artists))
	for i, a := range artists {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(a.ArtistID),
			a.Name,
			strconv.Itoa(a.TotalStreams),
		})
	}
	return writeCSV([]string{"Rank", "Artist ID", "Name", "Streams"}, rows)
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// SongsToMarkdown renders songs as a numbered Markdown list under title.
func SongsToMarkdown(title string, songs []models.Song) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Songs**: %d\n\n", len(songs))

	for i, s := range songs {
		album := ""
		if s.AlbumName != "" {
			album = fmt.Sprintf(" (%s)", s.AlbumName)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, s.ArtistName, s.TrackName, album, plays(s.PlayCount))
	}
	return buf.Bytes()
}

// ArtistsToMarkdown renders artists as a numbered Markdown list under title.
func ArtistsToMarkdown(title string, artists []models.Artist) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Artists**: %d\n\n", len(artists))

	for i, a := range artists {
		fmt.Fprintf(&buf, "%d. %s [%s]\n", i+1, a.Name, streams(a.TotalStreams))
	}
	return buf.Bytes()
}

// SongsToText renders songs as plain numbered lines.
func SongsToText(songs []models.Song) []byte {
	var buf bytes.Buffer
	for i, s := range songs {
		fmt.Fprintf(&buf, "%3d. %s - %s", i+1, s.ArtistName, s.TrackName)
		if s.PlayCount > 0 {
			fmt.Fprintf(&buf, " (%s)", plays(s.PlayCount))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ArtistsToText renders artists as plain numbered lines.
func ArtistsToText(artists []models.Artist) []byte {
	var buf bytes.Buffer
	for i, a := range artists {
		fmt.Fprintf(&buf, "%3d. %s", i+1, a.Name)
		if a.TotalStreams > 0 {
			fmt.Fprintf(&buf, " (%s)", streams(a.TotalStreams))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// SearchToText renders search results grouped by kind.
func SearchToText(r *models.SearchResults) []byte {
	var buf bytes.Buffer
	if len(r.Songs) == 0 && len(r.Artists) == 0 {
		buf.WriteString("No results\n")
		return buf.Bytes()
	}

	if len(r.Songs) > 0 {
		fmt.Fprintf(&buf, "Songs (%d)\n", len(r.Songs))
		for _, s := range r.Songs {
			fmt.Fprintf(&buf, "  [%d] %s - %s\n", s.SongID, s.ArtistName, s.TrackName)
		}
	}
	if len(r.Artists) > 0 {
		if len(r.Songs) > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "Artists (%d)\n", len(r.Artists))
		for _, a := range r.Artists {
			fmt.Fprintf(&buf, "  [%d] %s\n", a.ArtistID, a.Name)
		}
	}
	return buf.Bytes()
}

// SnapshotToText renders a snapshot summary followed by its top lists.
func SnapshotToText(s *models.Snapshot) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Snapshot: %s\n", s.Period)
	if s.Start != "" || s.End != "" {
		fmt.Fprintf(&buf, "Range: %s to %s\n", orDash(s.Start), orDash(s.End))
	}
	if s.GeneratedAt != "" {
		fmt.Fprintf(&buf, "Generated: %s\n", s.GeneratedAt)
	}
	fmt.Fprintf(&buf, "Streams: %d\n", s.TotalStreams)
	if s.TotalMs > 0 {
		fmt.Fprintf(&buf, "Minutes: %s\n", minutes(s.TotalMs))
	}

	if len(s.TopSongs) > 0 {
		buf.WriteString("\nTop songs\n")
		buf.Write(SongsToText(s.TopSongs))
	}
	if len(s.TopArtists) > 0 {
		buf.WriteString("\nTop artists\n")
		buf.Write(ArtistsToText(s.TopArtists))
	}
	return buf.Bytes()
}

// ArtistToMarkdown renders artist details with an optional cover image.
func ArtistToMarkdown(a *models.ArtistDetails, imageFilename string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", a.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Streams**: %d\n", a.TotalStreams)
	if a.Followers != nil {
		fmt.Fprintf(&buf, "**Followers**: %d\n", *a.Followers)
	}
	if a.Popularity != nil {
		fmt.Fprintf(&buf, "**Popularity**: %d\n", *a.Popularity)
	}
	if len(a.Genres) > 0 {
		fmt.Fprintf(&buf, "**Genres**: %s\n", strings.Join(a.Genres, ", "))
	}
	if a.SpotifyURI != "" {
		fmt.Fprintf(&buf, "**Spotify**: %s\n", a.SpotifyURI)
	}
	return buf.Bytes()
}

// RenderSongs renders songs in format. title is used by formats that carry a heading.
func RenderSongs(format Format, title string, songs []models.Song) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(songs, true)
	case FormatCSV:
		return SongsToCSV(songs)
	case FormatMarkdown:
		return SongsToMarkdown(title, songs), nil
	default:
		return SongsToText(songs), nil
	}
}

// RenderArtists renders artists in format. title is used by formats that carry a heading.
func RenderArtists(format Format, title string, artists []models.Artist) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(artists, true)
	case FormatCSV:
		return ArtistsToCSV(artists)
	case FormatMarkdown:
		return ArtistsToMarkdown(title, artists), nil
	default:
		return ArtistsToText(artists), nil
	}
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// ArtistExportResult contains information about files created by WriteArtistExport
type ArtistExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteArtistExport writes {dir}/README.md for an artist and, when the artist has an image URL, {dir}/cover.jpg.
//
// A failed image download is reported through warn and does not fail the export.
func WriteArtistExport(a *models.ArtistDetails, outputDir string, warn func(error)) (*ArtistExportResult, error) {
	if outputDir == "" {
		outputDir = fmt.Sprintf("artist_%d", a.ArtistID)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ArtistExportResult{Directory: outputDir, Files: []string{}}

	var cover string
	if a.ImageURL != "" {
		if data, err := DownloadImage(a.ImageURL); err != nil {
			if warn != nil {
				warn(err)
			}
		} else {
			path := filepath.Join(outputDir, "cover.jpg")
			if err := os.WriteFile(path, data, 0644); err != nil {
				if warn != nil {
					warn(fmt.Errorf("failed to save cover image: %w", err))
				}
			} else {
				cover = "cover.jpg"
				result.CoverImage = path
				result.Files = append(result.Files, path)
			}
		}
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, ArtistToMarkdown(a, cover), 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)
	return result, nil
}

// WriteFile writes rendered output to path, defaulting the extension from format when path has none.
func WriteFile(path string, format Format, data []byte) (string, error) {
	if filepath.Ext(path) == "" {
		path += format.Extension()
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func minutes(ms int64) string {
	return strconv.FormatInt(ms/60000, 10)
}

func plays(n int) string {
	if n == 1 {
		return "1 play"
	}
	return fmt.Sprintf("%d plays", n)
}

func streams(n int) string {
	if n == 1 {
		return "1 stream"
	}
	return fmt.Sprintf("%d streams", n)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
