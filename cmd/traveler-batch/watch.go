package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/traveler-renamer/internal/batch"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/ingest"
)

func newWatchCommand(o *options) *cobra.Command {
	var (
		debounce time.Duration
		initial  bool
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Process PDFs as they are dropped into a folder",
		Long: `Watches the given directories. Every burst of new PDFs becomes one batch whose
archive is written to --out as renamed_pdfs-<batch id>.zip.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), *o, args, debounce, initial)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 3*time.Second, "quiet period that closes a batch")
	cmd.Flags().BoolVar(&initial, "initial-scan", false, "process PDFs already present on start")
	return cmd
}

func runWatch(ctx context.Context, o options, roots []string, debounce time.Duration, initial bool) error {
	if o.out == "" || filepath.Ext(o.out) == ".zip" {
		o.out = "."
	}
	s, err := openSession(ctx, o)
	if err != nil {
		return err
	}
	defer s.Close()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: initial,
		Debounce:    debounce,
	}, s.logger)
	if err != nil {
		return err
	}
	pterm.Info.Printf("Watching %v; archives go to %s. Press Ctrl+C to stop.\n", roots, o.out)

	for {
		select {
		case <-ctx.Done():
			pterm.Info.Println("Stopped watching.")
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			pterm.Warning.Printf("Watcher error: %v\n", err)
		case paths, ok := <-events:
			if !ok {
				return nil
			}
			uploads := make([]batch.Upload, 0, len(paths))
			for _, p := range paths {
				uploads = append(uploads, ingest.FileUpload(p))
			}
			pterm.Info.Printf("%d new files\n", len(uploads))

			res, err := s.process(ctx, o.apiKey, uploads)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// a failed batch does not stop the watcher
				pterm.Error.Println(common.PublicMessage(err))
				s.logger.Error("watch.batch.failed", "files", len(uploads), "err", err)
				continue
			}
			out := filepath.Join(o.out, fmt.Sprintf("renamed_pdfs-%s.zip", res.BatchID))
			if err := s.deliver(ctx, res, out, ""); err != nil {
				pterm.Error.Println(err)
			}
		}
	}
}
