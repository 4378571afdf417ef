package store_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeline/engine/internal/store"
	"github.com/hedgeline/engine/pkg/api"
)

func newRedisStore(t *testing.T) *store.RedisStore {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s, err := store.NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	assert.NoError(t, s.Ping(ctx))

	recs, err := s.Get(ctx, store.CategoryPrices, "AAPL")
	assert.NoError(t, err)
	assert.Empty(t, recs)

	in := []api.Record{
		price("2026-01-02", 185.5),
		price("2026-01-03", 187.1),
	}
	assert.NoError(t, s.Set(ctx, store.CategoryPrices, "AAPL", in))

	out, err := s.Get(ctx, store.CategoryPrices, "AAPL")
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRedisStoreMerge(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	assert.NoError(t, s.Set(ctx, store.CategoryPrices, "AAPL",
		[]api.Record{price("2026-01-02", 185.5)}))
	assert.NoError(t, s.Set(ctx, store.CategoryPrices, "AAPL",
		[]api.Record{
			price("2026-01-02", 999.0),
			price("2026-01-03", 187.1),
		}))

	out, err := s.Get(ctx, store.CategoryPrices, "AAPL")
	assert.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 185.5, out[0]["close"])
	assert.Equal(t, "2026-01-03", out[1]["time"])
}

func TestRedisStoreMissingKeyField(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	seed := []api.Record{price("2026-01-02", 185.5)}
	assert.NoError(t, s.Set(ctx, store.CategoryPrices, "AAPL", seed))

	err := s.Set(ctx, store.CategoryPrices, "AAPL",
		[]api.Record{{"close": 188.0}})
	assert.ErrorIs(t, err, store.ErrMissingKeyField)

	out, err := s.Get(ctx, store.CategoryPrices, "AAPL")
	assert.NoError(t, err)
	assert.Equal(t, seed, out)
}

func TestNewRedisStoreBadURL(t *testing.T) {
	s, err := store.NewRedisStore("not-a-url")
	assert.Nil(t, s)
	assert.Error(t, err)
}
