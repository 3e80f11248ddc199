package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anirudh9911/AI-Chatbot/internal/model"
)

// Cache stores search results by key. A miss is reported with ok == false and
// a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (results []model.SearchResult, ok bool, err error)
	Set(ctx context.Context, key string, results []model.SearchResult, ttl time.Duration) error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache stores results as JSON strings under prefix + key.
func NewRedisCache(rdb *redis.Client, prefix string) Cache {
	return &redisCache{rdb: rdb, prefix: prefix}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]model.SearchResult, bool, error) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("could not read cached search: %w", err)
	}

	var results []model.SearchResult
	if err := json.Unmarshal(val, &results); err != nil {
		return nil, false, fmt.Errorf("could not decode cached search: %w", err)
	}
	return results, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, results []model.SearchResult, ttl time.Duration) error {
	val, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("could not encode search for cache: %w", err)
	}
	return c.rdb.Set(ctx, c.prefix+key, val, ttl).Err()
}

// CacheKey normalises a query so trivially different spellings share an entry.
func CacheKey(provider, query string, limit int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("%s:%d:%s", provider, limit, normalized)
}
