package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sumannaidur/extractor/internal/config"
	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/services"
	"github.com/sumannaidur/extractor/internal/shared"
	"github.com/sumannaidur/extractor/internal/web"
)

// NewServeCommand creates the dashboard command.
func NewServeCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard that shows totals and triggers runs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd, opts)
			cfg, err := loadConfig(opts, logger, true)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.DashboardAddr = addr
			}
			languages := make([]string, 0, len(cfg.MovieFiles))
			for _, mf := range cfg.MovieFiles {
				languages = append(languages, mf.Language)
			}
			server := web.NewServer(cfg.DashboardAddr, cfg.PartitionDir, languages, dashboardRun(cfg, logger), logger)
			return server.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "Listen address (defaults to DashboardAddr from the config)")
	return cmd
}

// dashboardRun builds a fresh container per run so the output lock is only
// held while a run is in flight.
func dashboardRun(cfg *config.Config, logger interfaces.LoggerService) web.RunFunc {
	return func(ctx context.Context) (*shared.RunSummary, error) {
		container, err := services.NewServiceContainer(cfg, logger)
		if err != nil {
			return nil, err
		}
		defer container.Close()

		summary, err := container.Pipeline.Run(ctx, container.Sources())
		if container.WarningCollector.HasWarnings() {
			container.WarningCollector.PrintSummary()
		}
		return summary, err
	}
}
