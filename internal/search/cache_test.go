package search_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudh9911/AI-Chatbot/internal/model"
	"github.com/anirudh9911/AI-Chatbot/internal/search"
)

func newRequest(ctx context.Context) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1/", nil)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	const prefix = "chat:search:"
	cache := search.NewRedisCache(rdb, prefix)
	key := search.CacheKey("fake", "golang", 5)

	t.Run("Miss", func(t *testing.T) {
		results, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, results)
	})

	t.Run("Hit", func(t *testing.T) {
		res := model.NewSearchResult("Go", "https://go.dev/")
		res.Set("description", "The Go language")
		require.NoError(t, cache.Set(ctx, key, []model.SearchResult{res}, time.Minute))
		assert.True(t, mr.Exists(prefix+key))

		results, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, results, 1)
		assert.Equal(t, "Go", *results[0].Title)
		assert.Equal(t, "The Go language", results[0].Extra["description"])
	})

	t.Run("Entries expire", func(t *testing.T) {
		res := model.NewSearchResult("Go", "https://go.dev/")
		require.NoError(t, cache.Set(ctx, key, []model.SearchResult{res}, time.Minute))
		mr.FastForward(2 * time.Minute)

		_, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Failure - Corrupt entry", func(t *testing.T) {
		require.NoError(t, mr.Set(prefix+key, "not json"))

		_, ok, err := cache.Get(ctx, key)
		assert.ErrorContains(t, err, "could not decode cached search")
		assert.False(t, ok)
	})

	t.Run("Failure - Server unavailable", func(t *testing.T) {
		mr.Close()

		_, _, err := cache.Get(ctx, key)
		assert.ErrorContains(t, err, "could not read cached search")
	})
}
