package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/yomi/internal/fakeapi"
	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/shared"
)

// DevServe runs the in-memory API until the context is cancelled.
func (r *Runner) DevServe(ctx context.Context, cmd *cli.Command) error {
	fake := fakeapi.New(fakeapi.Options{
		StepsToFinish: cmd.Int("steps"),
		RequireAuth:   cmd.Bool("require-auth"),
		Logger:        r.logger,
	})

	if seed := cmd.String("seed"); seed != "" {
		n, err := loadSeed(fake, seed)
		if err != nil {
			return err
		}
		r.writePlain("✓ Imported %d streams from %s\n", n, seed)
	}

	listener, err := net.Listen("tcp", cmd.String("addr"))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv := &http.Server{Handler: fake, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	url := "http://" + listener.Addr().String()
	r.logger.Info("fake API listening", "url", url)
	r.writePlain("Fake API listening on %s\n", url)
	r.writePlain("Point the CLI at it with %s=%s\n", shared.EnvAPIURL, url)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	r.writePlain("✓ Stopped\n")
	return nil
}

// loadSeed imports a streaming history export into fake.
func loadSeed(fake *fakeapi.Server, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	var records []models.StreamRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("%w: %s is not a streaming history export: %v", shared.ErrInvalidInput, path, err)
	}
	return fake.Import(records), nil
}
