package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

type cachedThing struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSetAndGetJSON(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, "thing:1", cachedThing{Name: "go", Count: 5}, time.Minute))

	var got cachedThing
	found, err := GetJSON(ctx, "thing:1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cachedThing{Name: "go", Count: 5}, got)
}

func TestGetJSON_Miss(t *testing.T) {
	setupMiniredis(t)

	var got cachedThing
	found, err := GetJSON(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAside_PopulatesOnMissAndServesFromCache(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			fetches++
			*dest = cachedThing{Name: "rust", Count: 2}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, "thing:2", &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, fetches)
	assert.Equal(t, "rust", first.Name)

	var second cachedThing
	require.NoError(t, Aside(ctx, "thing:2", &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, fetches, "second read must come from the cache")
	assert.Equal(t, "rust", second.Name)
}

func TestAside_FetchErrorPropagatesAndCachesNothing(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	var dest cachedThing
	err := Aside(ctx, "thing:3", &dest, time.Minute, func() error {
		return errors.New("db down")
	})
	require.Error(t, err)
	assert.False(t, mr.Exists("thing:3"))
}

func TestInvalidate(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, TagListKey, []cachedThing{{Name: "go"}}, time.Minute))
	require.True(t, mr.Exists(TagListKey))

	InvalidateTagList(ctx)
	assert.False(t, mr.Exists(TagListKey))
}

func TestNilClientFailsOpen(t *testing.T) {
	SetClient(nil)
	ctx := context.Background()

	assert.NoError(t, SetJSON(ctx, "k", cachedThing{}, time.Minute))

	var dest cachedThing
	found, err := GetJSON(ctx, "k", &dest)
	assert.NoError(t, err)
	assert.False(t, found)

	fetched := false
	require.NoError(t, Aside(ctx, "k", &dest, time.Minute, func() error {
		fetched = true
		return nil
	}))
	assert.True(t, fetched)
}
