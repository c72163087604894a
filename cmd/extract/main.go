package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joseph-ayodele/traveler-renamer/internal/app"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/credentials"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
	"github.com/joseph-ayodele/traveler-renamer/internal/naming"
	"github.com/joseph-ayodele/traveler-renamer/internal/ratelimit"
)

// extract runs the extractor on one PDF several times to check how stable the answers are.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: extract <file.pdf> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	times := 1
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read pdf", "path", path, "error", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config", "error", err)
		os.Exit(2)
	}
	key, src, ok := credentials.NewResolver(cfg.Credentials, logger).Resolve("")
	if !ok && cfg.RequiresAPIKey() {
		logger.Error("ANTHROPIC_API_KEY is required (secrets file, .env or environment)")
		os.Exit(2)
	}
	logger.Info("credential", "source", string(src))

	ctx := context.Background()
	ex, err := app.NewExtractor(ctx, cfg, logger)
	if err != nil {
		logger.Error("extractor", "error", err)
		os.Exit(1)
	}
	lim := ratelimit.NewInterval(cfg.Batch.MinInterval)

	names := map[string]int{}
	for i := 1; i <= times; i++ {
		if err := lim.Wait(ctx); err != nil {
			logger.Error("rate limit", "error", err)
			os.Exit(1)
		}
		start := time.Now()
		fields, raw, err := ex.ExtractFields(ctx, llm.ExtractRequest{
			Filename: filepath.Base(path),
			Data:     data,
			APIKey:   key,
		})
		if err != nil {
			logger.Error("extract.run.failed", "run", i, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
			continue
		}
		name, missing := naming.Compose(fields)
		names[name]++
		logger.Info("extract.run.ok",
			"run", i,
			"fields", json.RawMessage(raw),
			"new_name", name,
			"missing", missing,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}

	logger.Info("extract.summary", "runs", times, "distinct_names", len(names), "names", names)
}
