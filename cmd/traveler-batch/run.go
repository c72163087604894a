package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"

	"github.com/joseph-ayodele/traveler-renamer/internal/app"
	"github.com/joseph-ayodele/traveler-renamer/internal/batch"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/credentials"
	"github.com/joseph-ayodele/traveler-renamer/internal/export"
	"github.com/joseph-ayodele/traveler-renamer/internal/ingest"
	"github.com/joseph-ayodele/traveler-renamer/internal/repository"
	"github.com/joseph-ayodele/traveler-renamer/internal/storage"
)

// session holds what one CLI invocation wires up.
type session struct {
	cfg      *common.Config
	logger   *slog.Logger
	pipeline *app.Pipeline
	resolver *credentials.Resolver
	history  repository.BatchRepository
	archives *storage.S3Store
	closers  []func()
}

func openSession(ctx context.Context, o options) (*session, error) {
	logger := newLogger(o.verbose)
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger, resolver: credentials.NewResolver(cfg.Credentials, logger)}
	p, err := app.NewPipeline(ctx, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	s.pipeline = p
	s.closers = append(s.closers, p.Close)

	if !o.noHistory {
		db, err := app.InitDatabase(ctx, cfg, o.inmem, logger)
		if err != nil {
			pterm.Warning.Printf("Batch history disabled: %v\n", err)
		} else {
			s.history = repository.NewBatchRepository(db, logger)
			s.closers = append(s.closers, func() { _ = db.Close() })
		}
	}

	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket: cfg.Storage.S3Bucket,
		Prefix: cfg.Storage.S3Prefix,
		Region: cfg.LLM.AWSRegion,
	}, logger)
	if err != nil {
		pterm.Warning.Printf("Archive upload disabled: %v\n", err)
	}
	s.archives = store
	return s, nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// credential resolves the key once per batch.
func (s *session) credential(manual string) (string, error) {
	key, src, ok := s.resolver.Resolve(manual)
	if !ok && s.cfg.RequiresAPIKey() {
		return "", batch.ErrMissingCredential
	}
	if ok {
		s.logger.Debug("credentials.resolved", "source", string(src))
	}
	return key, nil
}

func runBatch(ctx context.Context, o options, args []string) error {
	s, err := openSession(ctx, o)
	if err != nil {
		return err
	}
	defer s.Close()

	uploads, stats, err := ingest.Collect(args, ingest.CollectOptions{Recursive: o.recursive, SkipHidden: o.skipHidden})
	if err != nil {
		return err
	}
	if len(uploads) == 0 {
		pterm.Warning.Println(common.PublicMessage(batch.ErrNoFiles))
		return nil
	}
	pterm.Info.Printf("%d files selected for processing (%d skipped)\n", stats.Matched, stats.Skipped)

	res, err := s.process(ctx, o.apiKey, uploads)
	if errors.Is(err, batch.ErrNoFiles) || errors.Is(err, batch.ErrMissingCredential) {
		pterm.Warning.Println(common.PublicMessage(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("an error occurred during processing: %w", err)
	}
	return s.deliver(ctx, res, o.out, o.report)
}

// process runs one batch behind a progress bar.
func (s *session) process(ctx context.Context, manual string, uploads []batch.Upload) (*batch.Result, error) {
	key, err := s.credential(manual)
	if err != nil {
		return nil, err
	}

	bar, _ := pterm.DefaultProgressbar.WithTotal(len(uploads)).WithTitle("Processing PDF files...").Start()
	res, err := s.pipeline.Processor.Process(ctx, key, uploads, func(p batch.Progress) {
		if bar == nil {
			return
		}
		for bar.Current < p.Done {
			bar.Increment()
		}
		bar.UpdateTitle(p.Message)
	})
	if bar != nil {
		_, _ = bar.Stop()
	}
	return res, err
}

// deliver writes the archive and report, records history, and prints the results table.
func (s *session) deliver(ctx context.Context, res *batch.Result, out, report string) error {
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(out, res.Archive, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	if report != "" {
		data, err := export.WriteResultsXLSX(res.Rows())
		if err != nil {
			return err
		}
		if err := os.WriteFile(report, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if s.history != nil {
		if err := s.history.Save(ctx, res); err != nil {
			pterm.Warning.Printf("Could not record batch history: %v\n", err)
		}
	}
	if s.archives != nil {
		if key, err := s.archives.PutArchive(ctx, res.BatchID, res.Archive); err != nil {
			pterm.Warning.Printf("Archive upload failed: %v\n", err)
		} else {
			pterm.Info.Printf("Archive uploaded to s3://%s/%s\n", s.cfg.Storage.S3Bucket, key)
		}
	}

	printResults(res)
	pterm.Success.Printf("Processing complete! Renamed files written to %s\n", out)
	if report != "" {
		pterm.Info.Printf("Results report written to %s\n", report)
	}
	return nil
}

func printResults(res *batch.Result) {
	data := pterm.TableData{{"Original Filename", "New Filename", "Status", "Customer", "Part Number", "Description"}}
	for _, r := range res.Rows() {
		data = append(data, []string{r.OriginalFilename, r.NewFilename, r.Status, r.Customer, r.PartNumber, r.Description})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		printError("render results: %v\n", err)
	}
	sum := res.Summary()
	pterm.Info.Printf("Batch %s: %d succeeded, %d partial, %d failed\n", res.BatchID, sum.Succeeded, sum.Partial, sum.Failed)
}
