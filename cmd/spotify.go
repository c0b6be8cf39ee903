package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// SpotifyConnect opens the Spotify authorization page the API redirects to, so the API can read the account's
// recently played tracks.
func (r *Runner) SpotifyConnect(ctx context.Context, cmd *cli.Command) error {
	url, err := r.stats.SpotifyLoginURL(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("print") {
		return r.writePlain("%s\n", url)
	}

	r.writePlain("→ Opening browser to connect Spotify...\n")
	if err := r.openBrowser(url); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		return r.writePlain("Please open this URL in your browser:\n%s\n", url)
	}
	return nil
}

// SpotifyFetchRecent asks the API to import recently played tracks.
func (r *Runner) SpotifyFetchRecent(ctx context.Context, cmd *cli.Command) error {
	r.ensureSynced(ctx)

	status, err := r.stats.FetchRecent(ctx)
	if err != nil {
		return err
	}
	if status.Message != "" {
		return r.writePlain("✓ %s\n", status.Message)
	}
	return r.writePlain("✓ Recent tracks requested (%s)\n", status.Status)
}
