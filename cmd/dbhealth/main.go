package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/traveler-renamer/internal/app"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	repo "github.com/joseph-ayodele/traveler-renamer/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		log.Printf("DB_URL not set, checking %s", repo.DefaultDSN)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	db, err := app.InitDatabase(ctx, cfg, false, logger)
	if err != nil {
		log.Fatalf("opening DB: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR: closing DB: %v", err)
		}
	}()

	if err := db.HealthCheck(ctx, 1*time.Second); err != nil {
		log.Fatalf("DB health: FAIL (%v)", err)
	}
	log.Printf("DB health: OK (%s)", db.Dialect())

	runs, err := repo.NewBatchRepository(db, logger).List(ctx, 10)
	if err != nil {
		log.Fatalf("listing batches: %v", err)
	}
	log.Printf("recent batches: %d", len(runs))
	for _, r := range runs {
		log.Printf("- %s %s total=%d ok=%d partial=%d failed=%d",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Summary.Total, r.Summary.Succeeded, r.Summary.Partial, r.Summary.Failed)
	}
}
