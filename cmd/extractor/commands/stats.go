package commands

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sumannaidur/extractor/internal/config"
	"github.com/sumannaidur/extractor/internal/core/sink"
	"github.com/sumannaidur/extractor/internal/ledger"
	"github.com/sumannaidur/extractor/internal/shared"
)

// NewStatsCommand creates the command that reports persisted totals and recent runs.
func NewStatsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show songs per language, recent runs and the tracks that fail most often.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			logger := newLogger(cmd, opts)
			cfg, err := loadConfig(opts, logger, false)
			if err != nil {
				return err
			}
			return writeStats(cmd, cfg, limit)
		},
	}
	cmd.Flags().Int("limit", 10, "Number of runs and failing tracks to list")
	return cmd
}

func writeStats(cmd *cobra.Command, cfg *config.Config, limit int) error {
	out := cmd.OutOrStdout()

	totals, err := sink.PartitionTotals(cfg.PartitionDir)
	if err != nil {
		return err
	}
	ids, err := sink.ReadProcessedIDs(cfg.OutputCSV)
	if err != nil {
		return err
	}
	writeTotals(out, totals, len(ids))

	if cfg.LedgerPath == "" || !shared.FileExists(cfg.LedgerPath) {
		return nil
	}
	store, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			finished := "running"
			if run.FinishedAt != nil {
				finished = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
			}
			rows = append(rows, []string{
				run.ID[:min(8, len(run.ID))],
				run.StartedAt.Local().Format("2006-01-02 15:04"),
				finished,
				strconv.Itoa(run.Totals.Processed),
				strconv.Itoa(run.Totals.Skipped),
				strconv.Itoa(run.Totals.Abandoned),
				strconv.Itoa(run.Totals.Errors),
			})
		}
		fmt.Fprintln(out, "\nRecent runs")
		fmt.Fprintln(out, renderTable(
			[]string{"Run", "Started", "Duration", "Processed", "Skipped", "Abandoned", "Errors"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}))
	}

	failures, err := store.TopFailures(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		rows := make([][]string, 0, len(failures))
		for _, f := range failures {
			rows = append(rows, []string{
				shared.TruncateString(f.Artist+" - "+f.Title, 48),
				f.Language,
				strconv.Itoa(f.Year),
				f.Stage,
				strconv.Itoa(f.Count),
				shared.TruncateString(f.LastError, 60),
			})
		}
		fmt.Fprintln(out, "\nMost failing tracks")
		fmt.Fprintln(out, renderTable(
			[]string{"Track", "Language", "Year", "Stage", "Failures", "Last error"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft}))
	}
	return nil
}

func writeTotals(out io.Writer, totals map[string]int, combined int) {
	languages := make([]string, 0, len(totals))
	for lang := range totals {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	rows := make([][]string, 0, len(languages)+1)
	sum := 0
	for _, lang := range languages {
		rows = append(rows, []string{lang, strconv.Itoa(totals[lang])})
		sum += totals[lang]
	}
	rows = append(rows, []string{"TOTAL", strconv.Itoa(sum)})
	fmt.Fprintln(out, "Songs per language")
	fmt.Fprintln(out, renderTable([]string{"Language", "Songs"}, rows, []columnAlignment{alignLeft, alignRight}))
	fmt.Fprintf(out, "Combined store: %d song(s)\n", combined)
}
