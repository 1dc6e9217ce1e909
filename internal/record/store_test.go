package record_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acuervo/catalog-mirror/internal/record"
	"github.com/acuervo/catalog-mirror/internal/storage"
	"github.com/acuervo/catalog-mirror/internal/storage/memory"
)

func TestStoreRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := record.NewStore(memory.New())

	exists, err := store.Exists(ctx, "mad1", "77")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Load(ctx, "mad1", "77")
	require.ErrorIs(t, err, storage.ErrNotFound)

	rec := record.NewRecord(100)
	merger := record.Merger{Now: func() int64 { return 100 }}
	merger.Merge(rec, map[string]any{"id": "77", "name": "Milk"})

	loc, err := store.Save(ctx, "mad1", "77", rec)
	require.NoError(t, err)
	assert.Equal(t, "mem://products/mad1/77.json", loc)

	got, err := store.Load(ctx, "mad1", "77")
	require.NoError(t, err)
	name := got.Product.Resolve("name").Field()
	require.NotNil(t, name)
	assert.Equal(t, "Milk", name.Value)
	assert.Equal(t, int64(100), got.Stats.CreatedAt)
}

func TestStoreKeyWithoutWarehouse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.New()
	store := record.NewStore(backend)

	_, err := store.Save(ctx, "", "77", record.NewRecord(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"products/77.json"}, backend.Keys())
}
