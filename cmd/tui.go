package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/yomi/internal/shared"
	"github.com/desertthunder/yomi/internal/ui"
)

// TUI launches the interactive terminal UI for lists and snapshot generation.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.stats == nil {
		return fmt.Errorf("%w: stats service not initialized", shared.ErrServiceUnavailable)
	}

	// Logs go to a file so they don't draw over the TUI.
	fileLogger, err := shared.NewFileLogger("./tmp/yomi-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Logging.Level))
	r.SetLogger(fileLogger)

	r.ensureSynced(ctx)

	model := ui.NewModel(ctx, r.stats, r.engine, nil)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
