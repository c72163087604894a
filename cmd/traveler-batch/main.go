package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/traveler-renamer/constants"
)

type options struct {
	out        string
	report     string
	apiKey     string
	recursive  bool
	skipHidden bool
	inmem      bool
	noHistory  bool
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "traveler-batch <pdf-or-dir>...",
		Short: "Rename job traveler PDFs from their Customer, Part Number and Description",
		Long: `Extracts Customer, Part Number and Description from each job traveler PDF,
renames it "Part Number Customer Description.pdf" and packs the renamed files into a ZIP.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), o, args)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&o.out, "out", "o", constants.ArchiveName, "output ZIP path (watch mode: output directory)")
	pf.StringVar(&o.report, "report", "", "also write the results table as XLSX to this path")
	pf.StringVar(&o.apiKey, "api-key", "", "Anthropic API key (overrides secrets file, .env and environment)")
	pf.BoolVar(&o.inmem, "inmem", false, "keep batch history in an in-memory SQLite database")
	pf.BoolVar(&o.noHistory, "no-history", false, "do not record batch history")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "log every step as JSON on stderr")
	cmd.Flags().BoolVarP(&o.recursive, "recursive", "r", false, "descend into sub-directories")
	cmd.Flags().BoolVar(&o.skipHidden, "skip-hidden", true, "ignore dot files and directories")

	cmd.AddCommand(newWatchCommand(&o))
	return cmd
}

// newLogger keeps stdout for the progress bar and table.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}
