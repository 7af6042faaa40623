// Package cache keeps read-through copies of case views in Redis.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fraudcase/internal/config"
	"fraudcase/internal/metrics"
	"fraudcase/internal/models"
)

// CaseCache stores serialized cases by id. Cache errors are logged and
// treated as misses so the store stays authoritative.
type CaseCache struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewClient opens a Redis client and checks connectivity
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to ping redis")
	}
	return client, nil
}

// NewCaseCache creates a case cache over client
func NewCaseCache(client *redis.Client, cfg config.RedisConfig, collector *metrics.Collector, logger *zap.Logger) *CaseCache {
	ttl := cfg.CaseTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CaseCache{
		client:  client,
		ttl:     ttl,
		prefix:  cfg.Prefix,
		metrics: collector,
		logger:  logger.Named("case_cache"),
	}
}

func (c *CaseCache) key(id uuid.UUID) string {
	return c.prefix + id.String()
}

// Get returns the cached case, if any
func (c *CaseCache) Get(ctx context.Context, id uuid.UUID) (*models.Case, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Case cache read failed", zap.String("case_id", id.String()), zap.Error(err))
		}
		c.metrics.CacheLookup(false)
		return nil, false
	}

	var cached models.Case
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", zap.String("case_id", id.String()), zap.Error(err))
		c.Invalidate(ctx, id)
		c.metrics.CacheLookup(false)
		return nil, false
	}

	c.metrics.CacheLookup(true)
	return &cached, true
}

// Set stores a case
func (c *CaseCache) Set(ctx context.Context, value *models.Case) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to encode case for cache", zap.String("case_id", value.ID.String()), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(value.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Case cache write failed", zap.String("case_id", value.ID.String()), zap.Error(err))
	}
}

// Invalidate drops the cached copy of a case
func (c *CaseCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn("Case cache invalidation failed", zap.String("case_id", id.String()), zap.Error(err))
	}
}

// Health pings the Redis server
func (c *CaseCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
