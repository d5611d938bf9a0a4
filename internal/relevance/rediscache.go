package relevance

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sells-group/aid-simulator/internal/metrics"
)

const redisKeyPrefix = "aidsim:relevance:"

// redisCmdable is the subset of the go-redis client the cache uses.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache shares decisions across simulator instances.
type RedisCache struct {
	rdb redisCmdable
	ttl time.Duration
}

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient builds a go-redis client with sub-second timeouts.
func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  250 * time.Millisecond,
		WriteTimeout: 250 * time.Millisecond,
	})
}

// NewRedisCache wraps a go-redis client.
func NewRedisCache(rdb redisCmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Get returns the stored ids. Any error, including a corrupt value, is a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]string, bool) {
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheLookupsTotal.WithLabelValues("redis", "miss").Inc()
		} else {
			metrics.CacheLookupsTotal.WithLabelValues("redis", "error").Inc()
			zap.L().Warn("relevance: redis get failed", zap.Error(err))
		}
		return nil, false
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("redis", "error").Inc()
		zap.L().Warn("relevance: corrupt redis entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("redis", "hit").Inc()
	return ids, true
}

// Set stores ids with the cache TTL. Failures are logged only.
func (c *RedisCache) Set(ctx context.Context, key string, ids []string) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		zap.L().Warn("relevance: redis set failed", zap.Error(err))
	}
}
