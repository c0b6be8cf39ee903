package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/yomi/internal/repositories"
	"github.com/desertthunder/yomi/internal/services"
	"github.com/desertthunder/yomi/internal/shared"
	"github.com/desertthunder/yomi/internal/store"
	"github.com/desertthunder/yomi/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	api         *services.APIService
	reader      *services.APIService
	store       store.Store
	history     *repositories.JobRepository
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	openBrowser shared.BrowserOpener
	now         func() time.Time

	jobs   *services.JobClient
	stats  *services.StatsService
	engine *tasks.JobEngine
	syncer *services.UserSyncer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	API         *services.APIService        // submissions and status checks
	Reader      *services.APIService        // idempotent reads; defaults to API
	Store       store.Store                 // token and sync flags; defaults to memory
	History     *repositories.JobRepository // optional job history
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser shared.BrowserOpener
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.API == nil {
		opts.API = services.NewAPIService(opts.Config.API.BaseURL, opts.HTTPClient).WithToken(services.StoreToken(opts.Store))
	}
	if opts.Reader == nil {
		opts.Reader = opts.API
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	r := &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		api:         opts.API,
		reader:      opts.Reader,
		store:       opts.Store,
		history:     opts.History,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
		now:         time.Now,
	}
	r.wire()
	return r
}

// wire builds the services that depend on the logger.
func (r *Runner) wire() {
	var recorder tasks.JobRecorder
	if r.history != nil {
		recorder = r.history
	}

	r.jobs = services.NewJobClient(r.api, r.config.API.UsesTaskEndpoint())
	r.stats = services.NewStatsService(r.api, r.reader)
	r.syncer = services.NewUserSyncer(r.stats, r.store, r.logger)
	r.engine = tasks.NewJobEngine(r.jobs, r.stats, recorder, tasks.EngineOptions{
		Interval:    r.config.API.Interval(),
		MaxAttempts: r.config.API.MaxAttempts,
		Workers:     r.config.API.SnapshotWorkers,
		StatusRate:  r.config.API.StatusRate,
		Logger:      r.logger,
	})
}

// SetLogger replaces the logger used by the runner and every service it owns.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.wire()
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "yomi",
		Usage:    "Upload Spotify listening history and explore your stats",
		Version:  "0.3.0",
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, uploadCommand, jobsCommand, snapshotsCommand, searchCommand, listsCommand,
		songCommand, artistCommand, spotifyCommand, apiCommand, tuiCommand, devCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// currentClaims decodes the stored token. A missing token is [shared.ErrNotAuthenticated]; an expired one is
// [shared.ErrTokenExpired].
func (r *Runner) currentClaims(ctx context.Context) (*shared.TokenClaims, error) {
	token, err := services.StoreToken(r.store)(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("%w: run 'yomi auth login' first", shared.ErrNotAuthenticated)
	}

	claims, err := shared.ParseTokenClaims(token)
	if err != nil {
		return nil, fmt.Errorf("%w: stored token is not a JWT: %v", shared.ErrNotAuthenticated, err)
	}
	if claims.Expired(r.now()) {
		return claims, fmt.Errorf("%w: signed in as %s until %s", shared.ErrTokenExpired, claims.Subject, claims.ExpiresAt.Format(time.RFC3339))
	}
	return claims, nil
}

// ensureSynced registers the signed-in user before the first authenticated request. Failures are logged, not
// returned: the request that follows reports the real problem.
func (r *Runner) ensureSynced(ctx context.Context) {
	claims, err := r.currentClaims(ctx)
	if err != nil {
		r.logger.Debug("skipping user sync", "error", err)
		return
	}
	if _, err := r.syncer.Sync(ctx, claims, false); err != nil {
		r.logger.Warn("user sync failed", "error", err)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
