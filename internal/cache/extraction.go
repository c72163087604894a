// Package cache remembers successful extractions so re-uploads of the same PDF skip the API.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
)

const keyPrefix = "traveler:extract:"

// ExtractionCache looks up and stores extraction results by document content.
type ExtractionCache interface {
	Get(ctx context.Context, data []byte) (llm.TravelerFields, bool)
	Put(ctx context.Context, data []byte, fields llm.TravelerFields)
}

// Key returns the cache key for a document.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Redis is an ExtractionCache backed by a Redis server. Failures are logged and treated as misses.
type Redis struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: logger}
}

// Open connects to cfg.RedisAddr. It returns (nil, nil) when the cache is disabled.
func Open(ctx context.Context, cfg common.CacheConfig, logger *slog.Logger) (*Redis, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return NewRedis(rdb, cfg.TTL, logger), nil
}

func (c *Redis) Get(ctx context.Context, data []byte) (llm.TravelerFields, bool) {
	key := Key(data)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return llm.TravelerFields{}, false
	}
	if err != nil {
		c.logger.Warn("cache.get.failed", "key", key, "err", err)
		return llm.TravelerFields{}, false
	}
	var fields llm.TravelerFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		c.logger.Warn("cache.get.decode_failed", "key", key, "err", err)
		return llm.TravelerFields{}, false
	}
	if !fields.HasField() {
		return llm.TravelerFields{}, false
	}
	return fields, true
}

// Put stores records carrying at least one field. Unrecognized keys are not cached.
func (c *Redis) Put(ctx context.Context, data []byte, fields llm.TravelerFields) {
	if !fields.HasField() {
		return
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		c.logger.Warn("cache.put.encode_failed", "err", err)
		return
	}
	key := Key(data)
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache.put.failed", "key", key, "err", err)
	}
}

func (c *Redis) Close() error {
	return c.rdb.Close()
}
