package commands

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/sumannaidur/extractor/internal/config"
	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/shared"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
	Output     string
	Languages  []string
}

// BindFlags registers the persistent flags on root.
func (o *Options) BindFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVarP(&o.ConfigPath, "config", "c", "config.json", "Path to the JSON or TOML configuration file")
	flags.BoolVar(&o.Debug, "debug", false, "Enable debug logging")
	flags.StringVarP(&o.Output, "output", "o", "", "Override the combined output CSV")
	flags.StringSliceVarP(&o.Languages, "language", "l", nil, "Only process these languages (repeatable)")
}

func newLogger(cmd *cobra.Command, opts *Options) interfaces.LoggerService {
	logger := shared.NewConsoleLoggerTo(cmd.OutOrStdout())
	logger.SetDebugMode(opts.Debug || shared.IsDebugMode())
	return logger
}

// loadConfig reads the configuration and applies flag overrides. A missing
// file is created with defaults and reported as an error so the user can fill
// in credentials and movie files.
func loadConfig(opts *Options, logger interfaces.LoggerService, validate bool) (*config.Config, error) {
	created, err := config.EnsureConfigExists(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("✨ Created a default configuration at %s", opts.ConfigPath)
		if validate {
			return nil, fmt.Errorf("add Spotify credentials and movie files to %s, then run again", opts.ConfigPath)
		}
	}

	cfg := &config.Config{}
	if err := config.LoadConfig(opts.ConfigPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyDefaults()
	if opts.Output != "" {
		cfg.OutputCSV = opts.Output
	}
	if opts.Debug {
		cfg.Debug = true
	}
	cfg.FilterLanguages(opts.Languages)

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	logger.Debug("Loaded configuration from %s (%d language(s))", opts.ConfigPath, len(cfg.MovieFiles))
	return cfg, nil
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

var statsHeaders = []string{"Language", "Movies", "Processed", "Skipped", "Abandoned", "No tracks", "Invalid rows", "Errors"}

var statsAligns = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}

func statsRow(label string, s shared.LanguageStats) []string {
	return []string{
		label,
		strconv.Itoa(s.Movies),
		strconv.Itoa(s.Processed),
		strconv.Itoa(s.Skipped),
		strconv.Itoa(s.Abandoned),
		strconv.Itoa(s.NoTracks),
		strconv.Itoa(s.InvalidRows),
		strconv.Itoa(s.Errors),
	}
}

// summaryTable renders per-language counters in run order, followed by the totals.
func summaryTable(summary *shared.RunSummary) string {
	rows := make([][]string, 0, len(summary.Languages)+1)
	for _, lang := range summary.Languages {
		rows = append(rows, statsRow(lang, *summary.Stats[lang]))
	}
	rows = append(rows, statsRow("TOTAL", summary.Totals()))
	return renderTable(statsHeaders, rows, statsAligns)
}
