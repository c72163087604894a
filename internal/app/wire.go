// Package app wires configuration into the components shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/traveler-renamer/internal/batch"
	"github.com/joseph-ayodele/traveler-renamer/internal/cache"
	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm/anthropic"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm/bedrock"
	"github.com/joseph-ayodele/traveler-renamer/internal/metrics"
	"github.com/joseph-ayodele/traveler-renamer/internal/ratelimit"
	"github.com/joseph-ayodele/traveler-renamer/internal/repository"
)

// NewExtractor builds the provider selected by LLM_PROVIDER.
func NewExtractor(ctx context.Context, cfg *common.Config, logger *slog.Logger) (llm.FieldExtractor, error) {
	switch cfg.LLM.Provider {
	case "bedrock":
		c, err := bedrock.NewClient(ctx, bedrock.Config{
			ModelID:   cfg.LLM.BedrockModelID,
			Region:    cfg.LLM.AWSRegion,
			MaxTokens: cfg.LLM.MaxTokens,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("llm.provider", "provider", "bedrock", "region", cfg.LLM.AWSRegion)
		return c, nil
	case "anthropic", "":
		logger.Info("llm.provider", "provider", "anthropic", "model", cfg.LLM.Model)
		return anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.LLM.APIKey,
			BaseURL:   cfg.LLM.BaseURL,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
		}, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_PROVIDER %q", cfg.LLM.Provider), common.ErrInvalidInput)
	}
}

// Pipeline is a ready processor plus the resources it holds.
type Pipeline struct {
	Processor *batch.Processor
	Limiter   ratelimit.Limiter
	cache     *cache.Redis
}

func (p *Pipeline) Close() {
	if p.cache != nil {
		_ = p.cache.Close()
	}
}

// NewPipeline builds the extractor, limiter, optional cache, and processor. m may be nil.
func NewPipeline(ctx context.Context, cfg *common.Config, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {
	ex, err := NewExtractor(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	lim := ratelimit.NewInterval(cfg.Batch.MinInterval)

	opts := []batch.Option{
		batch.WithLimiter(lim),
		batch.WithMetrics(m),
		batch.WithTempRoot(cfg.Batch.TempDir),
		batch.WithCredentialRequired(cfg.RequiresAPIKey()),
	}
	rc, err := cache.Open(ctx, cfg.Cache, logger)
	if err != nil {
		// the cache is optional; run without it
		logger.Warn("cache.disabled", "addr", cfg.Cache.RedisAddr, "err", err)
		rc = nil
	}
	if rc != nil {
		logger.Info("cache.enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL.String())
		opts = append(opts, batch.WithCache(rc))
	}

	return &Pipeline{
		Processor: batch.NewProcessor(logger, ex, opts...),
		Limiter:   lim,
		cache:     rc,
	}, nil
}

// InitDatabase opens and migrates the batch history store. inmem forces a private
// in-memory SQLite database.
func InitDatabase(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*repository.DB, error) {
	dsn := cfg.Database.DSN
	if inmem {
		dsn = repository.MemoryDSN
	}
	db, err := repository.Open(ctx, repository.Config{
		DSN:             dsn,
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
