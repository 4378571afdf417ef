package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "gocloud.dev/blob/memblob"

	"github.com/hedgeline/engine/internal/store"
	"github.com/hedgeline/engine/pkg/api"
)

func TestBlobSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()

	snap, err := store.NewBlobSnapshot(ctx, "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { _ = snap.Close() })

	src := store.NewMemoryStore()
	assert.NoError(t, src.Set(ctx, store.CategoryPrices, "AAPL",
		[]api.Record{
			price("2026-01-02", 185.5),
			price("2026-01-03", 187.1),
		}))
	assert.NoError(t, src.Set(ctx, store.CategoryCompanyNews, "MSFT",
		[]api.Record{{"date": "2026-01-02", "title": "earnings"}}))

	assert.NoError(t, snap.Save(ctx, src))

	dst := store.NewMemoryStore()
	assert.NoError(t, snap.Load(ctx, dst))
	assert.Equal(t, 2, dst.Len(store.CategoryPrices, "AAPL"))
	assert.Equal(t, 1, dst.Len(store.CategoryCompanyNews, "MSFT"))

	out, err := dst.Get(ctx, store.CategoryPrices, "AAPL")
	assert.NoError(t, err)
	assert.Equal(t, "2026-01-02", out[0]["time"])
}

func TestBlobSnapshotMissing(t *testing.T) {
	ctx := context.Background()

	snap, err := store.NewBlobSnapshot(ctx, "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { _ = snap.Close() })

	dst := store.NewMemoryStore()
	assert.NoError(t, snap.Load(ctx, dst), "missing snapshot is not an error")
	assert.Equal(t, 0, dst.Len(store.CategoryPrices, "AAPL"))
}

func TestBlobSnapshotLoadMerges(t *testing.T) {
	ctx := context.Background()

	snap, err := store.NewBlobSnapshot(ctx, "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { _ = snap.Close() })

	src := store.NewMemoryStore()
	assert.NoError(t, src.Set(ctx, store.CategoryPrices, "AAPL",
		[]api.Record{price("2026-01-02", 185.5)}))
	assert.NoError(t, snap.Save(ctx, src))

	dst := store.NewMemoryStore()
	assert.NoError(t, dst.Set(ctx, store.CategoryPrices, "AAPL",
		[]api.Record{price("2026-01-03", 187.1)}))

	assert.NoError(t, snap.Load(ctx, dst))
	assert.Equal(t, 2, dst.Len(store.CategoryPrices, "AAPL"))
}
