package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sumannaidur/extractor/cmd/extractor/commands"
	"github.com/sumannaidur/extractor/internal/shared"
)

const toolVersion = "1.0.0"

func newRootCommand() *cobra.Command {
	opts := &commands.Options{}
	root := &cobra.Command{
		Use:     "extractor",
		Version: toolVersion,
		Short:   "Builds an audio-feature dataset from film soundtracks.",
		Long: fmt.Sprintf(`Soundtrack Feature Extractor (v%s)

Reads per-language movie lists, resolves each movie's soundtrack album in the
Spotify catalog, fetches every track's audio from YouTube and stores seven
audio features per song in a combined CSV and in per-language, per-year CSVs.

Runs are resumable: songs already in the combined CSV are skipped.`, toolVersion),
		SilenceUsage: true,
	}
	opts.BindFlags(root)

	root.AddCommand(commands.NewRunCommand(opts))
	root.AddCommand(commands.NewStatsCommand(opts))
	root.AddCommand(commands.NewServeCommand(opts))
	return root
}

func main() {
	shared.InitializeColors()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
