package checkpoint_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acuervo/catalog-mirror/internal/catalog"
	"github.com/acuervo/catalog-mirror/internal/checkpoint"
	"github.com/acuervo/catalog-mirror/internal/storage/memory"
)

func TestReadColdStart(t *testing.T) {
	t.Parallel()

	store := checkpoint.NewStore(memory.New())
	cp, err := store.Read(context.Background(), "mad1")
	require.NoError(t, err)
	assert.Equal(t, "mad1", cp.Warehouse)
	assert.Empty(t, cp.Categories)
}

func TestSeedAndDrain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.New()
	store := checkpoint.NewStore(backend)

	cp, err := store.SeedCategories(ctx, "mad1", []int{112, 77, 9})
	require.NoError(t, err)
	require.Len(t, cp.Categories, 3)
	assert.Equal(t, 112, cp.Categories[0].ID)
	assert.Equal(t, checkpoint.StateUnlisted, cp.Categories[0].State)

	products := []catalog.RawProduct{
		{"id": "1001", "name": "Milk"},
		{"id": "1002", "name": "Butter"},
	}
	require.NoError(t, store.SetCategoryProducts(ctx, cp, 112, products))
	cat := cp.Category(112)
	require.NotNil(t, cat)
	assert.Equal(t, checkpoint.StateListed, cat.State)
	require.Len(t, cat.Products, 2)
	assert.Equal(t, 0, cat.Products[0].Key)
	assert.Equal(t, "1001", cat.Products[0].Product.ID())

	require.NoError(t, store.RemoveProductStub(ctx, cp, 112, 0))
	assert.Equal(t, checkpoint.StateListed, cp.Category(112).State)

	// Removing the last stub flips the category to drained in one write,
	// so a crash between the two never loses the marker.
	require.NoError(t, store.RemoveProductStub(ctx, cp, 112, 1))
	assert.Equal(t, checkpoint.StateDrained, cp.Category(112).State)
	assert.Empty(t, cp.Category(112).Products)

	require.NoError(t, store.RemoveCategory(ctx, cp, 112))
	assert.Nil(t, cp.Category(112))
	assert.Equal(t, []int{77, 9}, categoryIDs(cp))
}

func TestEmptyListingDrainsImmediately(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := checkpoint.NewStore(memory.New())
	cp, err := store.SeedCategories(ctx, "mad1", []int{5})
	require.NoError(t, err)

	require.NoError(t, store.SetCategoryProducts(ctx, cp, 5, nil))
	assert.Equal(t, checkpoint.StateDrained, cp.Category(5).State)
}

func TestResumeKeepsOrderAndState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.New()
	store := checkpoint.NewStore(backend)

	cp, err := store.SeedCategories(ctx, "mad1", []int{3, 1, 2})
	require.NoError(t, err)
	require.NoError(t, store.SetCategoryProducts(ctx, cp, 3, []catalog.RawProduct{
		{"id": "9"}, {"id": "8"},
	}))
	require.NoError(t, store.RemoveProductStub(ctx, cp, 3, 0))

	// A fresh store over the same backend sees exactly the persisted
	// frontier: listing order intact, finished stub gone.
	resumed, err := checkpoint.NewStore(backend).Read(ctx, "mad1")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, categoryIDs(resumed))
	cat := resumed.Category(3)
	require.NotNil(t, cat)
	assert.Equal(t, checkpoint.StateListed, cat.State)
	require.Len(t, cat.Products, 1)
	assert.Equal(t, 1, cat.Products[0].Key)
	assert.Equal(t, "8", cat.Products[0].Product.ID())
}

func TestMutateUnknownCategory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := checkpoint.NewStore(memory.New())
	cp, err := store.SeedCategories(ctx, "mad1", []int{1})
	require.NoError(t, err)

	err = store.SetCategoryProducts(ctx, cp, 99, nil)
	assert.ErrorIs(t, err, checkpoint.ErrUnknownCategory)
	err = store.RemoveProductStub(ctx, cp, 1, 7)
	assert.ErrorIs(t, err, checkpoint.ErrUnknownCategory)
	err = store.RemoveCategory(ctx, cp, 99)
	assert.ErrorIs(t, err, checkpoint.ErrUnknownCategory)
}

func categoryIDs(cp *checkpoint.Checkpoint) []int {
	ids := make([]int, 0, len(cp.Categories))
	for _, c := range cp.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}
