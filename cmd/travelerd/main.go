package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/traveler-renamer/internal/app"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/credentials"
	"github.com/joseph-ayodele/traveler-renamer/internal/export"
	"github.com/joseph-ayodele/traveler-renamer/internal/metrics"
	"github.com/joseph-ayodele/traveler-renamer/internal/repository"
	"github.com/joseph-ayodele/traveler-renamer/internal/server"
	"github.com/joseph-ayodele/traveler-renamer/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("travelerd.exit", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	m := metrics.New()
	pipeline, err := app.NewPipeline(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	db, err := app.InitDatabase(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	batches := repository.NewBatchRepository(db, logger)

	opts := server.Options{
		Processor:      pipeline.Processor,
		Credentials:    credentials.NewResolver(cfg.Credentials, logger),
		Batches:        batches,
		Reports:        export.NewService(batches, logger),
		Metrics:        m,
		Health:         func(ctx context.Context) error { return db.HealthCheck(ctx, time.Second) },
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}
	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket: cfg.Storage.S3Bucket,
		Prefix: cfg.Storage.S3Prefix,
		Region: cfg.LLM.AWSRegion,
	}, logger)
	if err != nil {
		return err
	}
	if store != nil {
		opts.Archives = store
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.New(opts).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info("http.serve", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var health *server.HealthServer
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		health = server.NewHealthServer(logger)
		go health.Watch(ctx, 15*time.Second, opts.Health)
		go func() {
			if err := health.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("travelerd.shutdown")
	case err := <-errCh:
		logger.Error("travelerd.serve.failed", "err", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if health != nil {
		health.Stop()
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("travelerd.stopped")
	return nil
}
