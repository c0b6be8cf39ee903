// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, csv or markdown",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of stdout",
		},
	}
}

func windowFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum number of entries",
			Value:   50,
		},
		&cli.StringFlag{
			Name:  "start",
			Usage: "Only count streams from this date (YYYY-MM-DD or RFC3339)",
		},
		&cli.StringFlag{
			Name:  "end",
			Usage: "Only count streams before this date (YYYY-MM-DD or RFC3339)",
		},
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// setupCommand handles setup operations for configuration and the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create config.toml if missing, initialize the database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles sign-in with the identity provider
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in through the browser, or store a token you already have",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "token",
						Usage: "Access token to store instead of signing in",
					},
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL) carrying a bearer token",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to a file containing such a cURL command",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored token",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show who is signed in and whether the API is reachable",
				Action: r.AuthStatus,
			},
			{
				Name:  "sync",
				Usage: "Register the signed-in user with the API",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Sync even if this user was synced before",
					},
				},
				Action: r.AuthSync,
			},
		},
	}
}

// uploadCommand uploads a streaming history export and waits for the import job
func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Upload a Spotify streaming history file (StreamingHistory_music_*.json)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Upload,
	}
}

// jobsCommand inspects remote jobs and the local job history
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect background jobs",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Check a job's status once",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.JobsStatus,
			},
			{
				Name:  "watch",
				Usage: "Poll a job until it finishes",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.JobsWatch,
			},
			{
				Name:  "history",
				Usage: "List jobs recorded in the local database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Filter by kind: upload, snapshot or lifetime",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status: queued, processing, succeeded or failed",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of jobs",
						Value:   20,
					},
					jsonFlag(),
				},
				Action: r.JobsHistory,
			},
		},
	}
}

// snapshotsCommand requests and reads precomputed statistics
func snapshotsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "snapshots",
		Aliases: []string{"snap"},
		Usage:   "Generate and read listening snapshots",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate snapshots and wait for every job",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "period",
						Aliases: []string{"p"},
						Usage:   "Period to generate: day, week, month, year or lifetime (repeatable; default: all)",
					},
					jsonFlag(),
				},
				Action: r.SnapshotsGenerate,
			},
			{
				Name:  "custom",
				Usage: "Generate a snapshot for a custom date range",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "start",
						Usage:    "Range start (YYYY-MM-DD or RFC3339)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "end",
						Usage:    "Range end (YYYY-MM-DD or RFC3339)",
						Required: true,
					},
					jsonFlag(),
				},
				Action: r.SnapshotsCustom,
			},
			{
				Name:  "latest",
				Usage: "Show the latest lifetime snapshot",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "wait",
						Aliases: []string{"w"},
						Usage:   "Poll until a snapshot that is still generating is ready",
					},
					jsonFlag(),
				},
				Action: r.SnapshotsLatest,
			},
		},
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search your songs and artists",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Search,
	}
}

// listsCommand renders top-N lists
func listsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lists",
		Usage: "Top songs and artists",
		Commands: []*cli.Command{
			{
				Name:   "songs",
				Usage:  "Your most played songs",
				Flags:  append(windowFlags(), formatFlags()...),
				Action: r.ListSongs,
			},
			{
				Name:   "artists",
				Usage:  "Your most played artists",
				Flags:  append(windowFlags(), formatFlags()...),
				Action: r.ListArtists,
			},
			{
				Name:  "preset",
				Usage: "Render a built-in list; without a name, list the presets",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags:  formatFlags(),
				Action: r.ListPreset,
			},
		},
	}
}

func songCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "song",
		Usage: "Show play statistics for one song",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Song,
	}
}

func artistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artist",
		Usage: "Show details for one artist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			jsonFlag(),
			&cli.StringFlag{
				Name:  "export",
				Usage: "Write README.md and cover.jpg to this directory",
			},
		},
		Action: r.Artist,
	}
}

// spotifyCommand handles the API's Spotify connection
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account operations",
		Commands: []*cli.Command{
			{
				Name:  "connect",
				Usage: "Open the Spotify authorization page for your account",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "print",
						Usage: "Print the URL instead of opening a browser",
					},
				},
				Action: r.SpotifyConnect,
			},
			{
				Name:   "fetch-recent",
				Usage:  "Import recently played tracks from the connected account",
				Action: r.SpotifyFetchRecent,
			},
		},
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "compact",
						Usage: "Print JSON on one line",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:   "status",
				Usage:  "Check the API's database health",
				Action: r.APIStatus,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse lists and generate snapshots interactively",
		Action:  r.TUI,
	}
}

// devCommand holds tools for working without the production API
func devCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dev",
		Usage: "Development tools",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run an in-memory fake of the API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: "127.0.0.1:5000",
					},
					&cli.IntFlag{
						Name:  "steps",
						Usage: "Status checks before a job finishes",
						Value: 3,
					},
					&cli.BoolFlag{
						Name:  "require-auth",
						Usage: "Reject job submissions without a token for a synced user",
					},
					&cli.StringFlag{
						Name:  "seed",
						Usage: "Streaming history file to import at startup",
					},
				},
				Action: r.DevServe,
			},
		},
	}
}
