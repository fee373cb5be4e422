package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/ocr-worker/internal/ocr"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ResultCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := NewResultCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestResultCache_Miss(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)

	res, found, err := cache.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, res)
}

func TestResultCache_SetGet(t *testing.T) {
	cache, mr := newTestCache(t, time.Hour)
	want := structuredResult()

	require.NoError(t, cache.Set(context.Background(), "fp1", want))
	assert.True(t, mr.Exists("ocr:result:fp1"))

	got, found, err := cache.Get(context.Background(), "fp1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestResultCache_Expires(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	require.NoError(t, cache.Set(context.Background(), "fp2", &ocr.Result{Text: "x"}))

	mr.FastForward(2 * time.Minute)

	_, found, err := cache.Get(context.Background(), "fp2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResultCache_CorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t, 0)
	require.NoError(t, mr.Set("ocr:result:bad", "{not json"))

	_, _, err := cache.Get(context.Background(), "bad")
	assert.ErrorContains(t, err, "decode")
}

func TestNewResultCacheFromURL_Invalid(t *testing.T) {
	_, err := NewResultCacheFromURL("://", time.Minute)
	assert.Error(t, err)
}
