package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/yomi/internal/formatter"
	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/shared"
)

// Search searches songs and artists by name.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}

	results, err := r.stats.Search(ctx, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}
	return r.writeBytes(formatter.SearchToText(results))
}

// ListSongs renders the most played songs.
func (r *Runner) ListSongs(ctx context.Context, cmd *cli.Command) error {
	q, err := listQuery(cmd)
	if err != nil {
		return err
	}
	return r.renderList(ctx, cmd, models.ListPreset{Name: "top-songs", Label: "Top Songs"}, q)
}

// ListArtists renders the most played artists.
func (r *Runner) ListArtists(ctx context.Context, cmd *cli.Command) error {
	q, err := listQuery(cmd)
	if err != nil {
		return err
	}
	return r.renderList(ctx, cmd, models.ListPreset{Name: "top-artists", Label: "Top Artists", Artists: true}, q)
}

// ListPreset renders a built-in list, or names the presets when called without one.
func (r *Runner) ListPreset(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		r.writePlain("Available lists:\n")
		for _, p := range models.Presets() {
			r.writePlain("  %-20s %s\n", p.Name, p.Label)
		}
		return nil
	}

	preset, ok := models.LookupPreset(name)
	if !ok {
		return fmt.Errorf("%w: unknown list %q (run 'yomi lists preset' to see them)", shared.ErrInvalidArgument, name)
	}
	return r.renderList(ctx, cmd, preset, preset.Query(r.now()))
}

func (r *Runner) renderList(ctx context.Context, cmd *cli.Command, preset models.ListPreset, q models.ListQuery) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var data []byte
	if preset.Artists {
		artists, err := r.stats.TopArtists(ctx, q)
		if err != nil {
			return err
		}
		data, err = formatter.RenderArtists(format, preset.Label, artists)
		if err != nil {
			return err
		}
	} else {
		songs, err := r.stats.TopSongs(ctx, q)
		if err != nil {
			return err
		}
		data, err = formatter.RenderSongs(format, preset.Label, songs)
		if err != nil {
			return err
		}
	}

	if out := cmd.String("output"); out != "" {
		path, err := formatter.WriteFile(out, format, data)
		if err != nil {
			return err
		}
		r.logger.Info("list written", "path", path, "format", format)
		return r.writePlain("✓ %s written to %s\n", preset.Label, path)
	}
	return r.writeBytes(data)
}

func listQuery(cmd *cli.Command) (models.ListQuery, error) {
	start, err := parseDate(cmd.String("start"))
	if err != nil {
		return models.ListQuery{}, err
	}
	end, err := parseDate(cmd.String("end"))
	if err != nil {
		return models.ListQuery{}, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return models.ListQuery{}, fmt.Errorf("%w: --end is before --start", shared.ErrInvalidArgument)
	}
	return models.ListQuery{Start: start, End: end, Limit: cmd.Int("limit")}, nil
}

// Song prints play statistics for one song.
func (r *Runner) Song(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: song id is required", shared.ErrMissingArgument)
	}

	song, err := r.stats.Song(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(song, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s - %s", song.ArtistName, song.TrackName))
	if song.AlbumName != "" {
		r.writePlain("Album: %s\n", song.AlbumName)
	}
	r.writePlain("Plays: %d\n", song.PlayCount)
	if song.MsPlayed > 0 {
		r.writePlain("Minutes: %.1f\n", float64(song.MsPlayed)/60000)
	}
	if song.FirstPlayed != "" {
		r.writePlain("First played: %s\n", song.FirstPlayed)
	}
	if song.LastPlayed != "" {
		r.writePlain("Last played: %s\n", song.LastPlayed)
	}
	if song.LongestBinge > 0 {
		r.writePlain("Longest binge: %d plays\n", song.LongestBinge)
	}
	return nil
}

// Artist prints details for one artist, or exports them with --export.
func (r *Runner) Artist(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: artist id is required", shared.ErrMissingArgument)
	}

	artist, err := r.stats.Artist(ctx, id)
	if err != nil {
		return err
	}

	if cmd.IsSet("export") {
		result, err := formatter.WriteArtistExport(artist, cmd.String("export"), func(err error) {
			r.logger.Warn("failed to download cover image", "error", err)
		})
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s to %s\n", artist.Name, result.Directory)
		for _, f := range result.Files {
			r.writePlain("  %s\n", f)
		}
		return nil
	}

	if cmd.Bool("json") {
		return r.writeJSON(artist, true)
	}
	return r.writeBytes(formatter.ArtistToMarkdown(artist, ""))
}
