package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sumannaidur/extractor/internal/core/downloader"
	"github.com/sumannaidur/extractor/internal/services"
	"github.com/sumannaidur/extractor/internal/shared"
)

// NewRunCommand creates the command that runs the pipeline over the configured movie files.
func NewRunCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract audio features for every soundtrack in the configured movie lists.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineCommand(cmd, opts)
		},
	}
	cmd.Flags().Bool("no-progress", false, "Disable progress bars")
	return cmd
}

func runPipelineCommand(cmd *cobra.Command, opts *Options) error {
	logger := newLogger(cmd, opts)
	cfg, err := loadConfig(opts, logger, true)
	if err != nil {
		return err
	}

	if missing := downloader.MissingTools(cfg.YtDlpPath, false); len(missing) > 0 {
		return fmt.Errorf("required tools not found in PATH: %s", strings.Join(missing, ", "))
	}

	var containerOpts []services.Option
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	if !noProgress && !cfg.Debug && shared.IsTTY() {
		containerOpts = append(containerOpts, services.WithObserver(newProgressBars(cmd.ErrOrStderr())))
	}

	container, err := services.NewServiceContainer(cfg, logger, containerOpts...)
	if err != nil {
		if errors.Is(err, shared.ErrRunInProgress) {
			return fmt.Errorf("another run is writing to %s: %w", cfg.OutputCSV, err)
		}
		return err
	}
	defer container.Close()

	summary, runErr := container.Pipeline.Run(cmd.Context(), container.Sources())

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), summaryTable(summary))
	fmt.Fprintf(cmd.OutOrStdout(), "Songs in %s: %d\n", cfg.OutputCSV, container.Sink.Count())
	if container.WarningCollector.HasWarnings() {
		container.WarningCollector.WriteSummary(cmd.OutOrStdout())
	}

	if errors.Is(runErr, context.Canceled) {
		logger.Warning("Run interrupted; processed songs are saved and will be skipped next time")
		return runErr
	}
	if runErr != nil {
		return runErr
	}
	logger.Success("Run %s completed", summary.RunID)
	return nil
}
