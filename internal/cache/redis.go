package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quang1403/ecommerce-backend/internal/config"
	"github.com/quang1403/ecommerce-backend/internal/models"
	"github.com/quang1403/ecommerce-backend/internal/observability"
)

// RedisCache fronts the search engine with two layers per query: a fresh key
// with a short TTL, and a stale copy kept much longer that is served only
// when the engine reports total failure.
type RedisCache struct {
	client redis.UniversalClient
	ttl    config.CacheTTLConfig
	logger *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	var client redis.UniversalClient

	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis cache connected", zap.Strings("addresses", cfg.Addresses))

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

// GetSearchResult returns the fresh cached result for a normalized query, or
// nil on a miss. Cache keys are derived from the normalized form so that
// "iPhone 15!" and "iphone 15" share an entry.
func (rc *RedisCache) GetSearchResult(ctx context.Context, normalizedQuery string) (*models.SearchResult, error) {
	return rc.getResult(ctx, searchKey(normalizedQuery))
}

// SetSearchResult stores the result under both the fresh and the stale key.
// Fallback and failure results are the caller's responsibility to filter out;
// this layer caches whatever it is given.
func (rc *RedisCache) SetSearchResult(ctx context.Context, normalizedQuery string, result *models.SearchResult) error {
	if err := rc.setResult(ctx, searchKey(normalizedQuery), result, rc.ttl.SearchResults); err != nil {
		return err
	}
	return rc.setResult(ctx, staleKey(normalizedQuery), result, rc.ttl.StaleFallback)
}

// GetStaleResult returns the long-lived stale copy, used only when a live
// search ends in total failure.
func (rc *RedisCache) GetStaleResult(ctx context.Context, normalizedQuery string) (*models.SearchResult, error) {
	return rc.getResult(ctx, staleKey(normalizedQuery))
}

func (rc *RedisCache) GetPopular(ctx context.Context) ([]models.ScoredProduct, error) {
	val, err := rc.client.Get(ctx, "popular").Result()
	if err == redis.Nil {
		observability.CacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get popular: %w", err)
	}
	observability.CacheHits.Inc()
	var products []models.ScoredProduct
	if err := json.Unmarshal([]byte(val), &products); err != nil {
		return nil, fmt.Errorf("cache unmarshal popular: %w", err)
	}
	return products, nil
}

func (rc *RedisCache) SetPopular(ctx context.Context, products []models.ScoredProduct) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("cache marshal popular: %w", err)
	}
	return rc.client.Set(ctx, "popular", data, rc.ttl.Popular).Err()
}

// InvalidateSearchResults drops all fresh search entries. The indexing
// pipeline calls this after applying catalog changes; stale copies are
// deliberately left behind as the outage fallback.
func (rc *RedisCache) InvalidateSearchResults(ctx context.Context) error {
	return rc.invalidatePattern(ctx, "sr:v1:*")
}

func (rc *RedisCache) invalidatePattern(ctx context.Context, pattern string) error {
	iter := rc.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %s: %w", pattern, err)
	}
	if len(keys) > 0 {
		if err := rc.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache delete: %w", err)
		}
	}
	return nil
}

func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisCache) getResult(ctx context.Context, key string) (*models.SearchResult, error) {
	val, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		observability.CacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	observability.CacheHits.Inc()
	var result models.SearchResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("cache unmarshal: %w", err)
	}
	return &result, nil
}

func (rc *RedisCache) setResult(ctx context.Context, key string, result *models.SearchResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return rc.client.Set(ctx, key, data, ttl).Err()
}

func searchKey(normalizedQuery string) string {
	return fmt.Sprintf("sr:v1:%s", hashString(normalizedQuery))
}

func staleKey(normalizedQuery string) string {
	return fmt.Sprintf("sr:stale:v1:%s", hashString(normalizedQuery))
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
