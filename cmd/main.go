package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/yomi/internal/repositories"
	"github.com/desertthunder/yomi/internal/services"
	"github.com/desertthunder/yomi/internal/shared"
	"github.com/desertthunder/yomi/internal/store"
)

const configPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, logger, os.Args)
	stop()

	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, args []string) error {
	if err := shared.LoadEnv(".env"); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			return err
		}
		config = loaded
	}
	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return err
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Logging.Level))

	var (
		settings store.Store
		history  *repositories.JobRepository
	)
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		logger.Warn("database unavailable, sign-in will not persist", "path", config.Database.Path, "error", err)
		settings = store.NewMemory()
	} else {
		defer closeDB(db, logger)
		settings = repositories.NewSettingsRepository(db)
		history = repositories.NewJobRepository(db)
	}

	client := services.NewClient(config.API.Timeout())
	retrying := services.NewRetryingClient(config.API.RetryMax, config.API.Timeout(), logger)

	api := services.NewAPIService(config.API.BaseURL, client).WithToken(services.StoreToken(settings))
	reader := api.WithClient(retrying)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		API:        api,
		Reader:     reader,
		Store:      settings,
		History:    history,
		HTTPClient: client,
		Logger:     logger,
	})

	return runner.app().Run(ctx, args)
}

func closeDB(db *sql.DB, logger *log.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}
