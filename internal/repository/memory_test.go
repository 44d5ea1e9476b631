package repository

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/store-catalog/internal/model"
)

func sequentialIDs() IDGenerator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}
}

func mustCreateStore(t *testing.T, r *MemoryRepository, name string) *model.Store {
	t.Helper()
	s, err := r.CreateStore(context.Background(), &model.Store{Name: name})
	require.NoError(t, err)
	return s
}

func mustCreateItem(t *testing.T, r *MemoryRepository, name, storeID string) *model.Item {
	t.Helper()
	item, err := r.CreateItem(context.Background(), &model.Item{Name: name, Price: 1, StoreID: storeID})
	require.NoError(t, err)
	return item
}

func TestNewHexID(t *testing.T) {
	hexID := regexp.MustCompile(`^[0-9a-f]{32}$`)

	a, b := NewHexID(), NewHexID()

	assert.Regexp(t, hexID, a)
	assert.Regexp(t, hexID, b)
	assert.NotEqual(t, a, b)
}

func TestParseDeletePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    DeletePolicy
		wantErr bool
	}{
		{in: "", want: PolicyOrphan},
		{in: "orphan", want: PolicyOrphan},
		{in: "cascade", want: PolicyCascade},
		{in: "restrict", want: PolicyRestrict},
		{in: "nullify", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeletePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMemoryRepository(t *testing.T) {
	r := NewMemoryRepository()

	require.NotNil(t, r)
	assert.NotNil(t, r.stores)
	assert.NotNil(t, r.items)
	assert.Equal(t, PolicyOrphan, r.Policy())
}

func TestMemoryRepository_CreateStore(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	created, err := r.CreateStore(ctx, &model.Store{
		ID:         "ignored",
		Name:       "Shoe Shop",
		Attributes: map[string]any{"city": "Berlin"},
	})
	require.NoError(t, err)
	assert.Len(t, created.ID, 32)
	assert.NotEqual(t, "ignored", created.ID)

	got, err := r.GetStore(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestMemoryRepository_CreateStore_DuplicateName(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	mustCreateStore(t, r, "Shoe Shop")

	_, err := r.CreateStore(ctx, &model.Store{Name: "Shoe Shop"})
	assert.ErrorIs(t, err, ErrStoreExists)

	stores, err := r.ListStores(ctx)
	require.NoError(t, err)
	assert.Len(t, stores, 1)
}

func TestMemoryRepository_CreateStore_Nil(t *testing.T) {
	_, err := NewMemoryRepository().CreateStore(context.Background(), nil)
	assert.Error(t, err)
}

func TestMemoryRepository_GetStore(t *testing.T) {
	r := NewMemoryRepository()
	created := mustCreateStore(t, r, "Shoe Shop")

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "existing", id: created.ID},
		{name: "missing", id: "nope", wantErr: ErrStoreNotFound},
		{name: "empty id", id: "", wantErr: ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.GetStore(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, created.Name, got.Name)
		})
	}
}

func TestMemoryRepository_GetStore_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	created, err := r.CreateStore(ctx, &model.Store{Name: "Shop", Attributes: map[string]any{"a": 1}})
	require.NoError(t, err)

	got, err := r.GetStore(ctx, created.ID)
	require.NoError(t, err)
	got.Attributes["a"] = 2
	got.Name = "Changed"

	again, err := r.GetStore(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", again.Name)
	assert.Equal(t, 1, again.Attributes["a"])
}

func TestMemoryRepository_ListStores_Sorted(t *testing.T) {
	r := NewMemoryRepository(WithIDGenerator(sequentialIDs()))
	mustCreateStore(t, r, "b")
	mustCreateStore(t, r, "a")
	mustCreateStore(t, r, "c")

	stores, err := r.ListStores(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(stores))
	for _, s := range stores {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestMemoryRepository_UpdateStore(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	shoes := mustCreateStore(t, r, "Shoe Shop")
	mustCreateStore(t, r, "Hat Shop")

	t.Run("rename", func(t *testing.T) {
		got, err := r.UpdateStore(ctx, shoes.ID, &model.Store{Name: "Boot Shop", Attributes: map[string]any{"open": true}})
		require.NoError(t, err)
		assert.Equal(t, shoes.ID, got.ID)
		assert.Equal(t, "Boot Shop", got.Name)
		assert.Equal(t, true, got.Attributes["open"])
	})

	t.Run("same name as itself", func(t *testing.T) {
		got, err := r.UpdateStore(ctx, shoes.ID, &model.Store{Name: "Boot Shop"})
		require.NoError(t, err)
		assert.Equal(t, "Boot Shop", got.Name)
		assert.Equal(t, true, got.Attributes["open"], "attributes survive a shallow merge")
	})

	t.Run("name of another store", func(t *testing.T) {
		_, err := r.UpdateStore(ctx, shoes.ID, &model.Store{Name: "Hat Shop"})
		assert.ErrorIs(t, err, ErrStoreExists)
	})

	t.Run("missing store", func(t *testing.T) {
		_, err := r.UpdateStore(ctx, "nope", &model.Store{Name: "X"})
		assert.ErrorIs(t, err, ErrStoreNotFound)
	})

	t.Run("nil patch", func(t *testing.T) {
		_, err := r.UpdateStore(ctx, shoes.ID, nil)
		assert.Error(t, err)
	})
}

func TestMemoryRepository_DeleteStore_Policies(t *testing.T) {
	tests := []struct {
		name        string
		policy      DeletePolicy
		wantErr     error
		wantRemoved int
		wantItems   int
		wantStores  int
	}{
		{name: "orphan keeps items", policy: PolicyOrphan, wantItems: 2, wantStores: 1},
		{name: "cascade removes items", policy: PolicyCascade, wantRemoved: 1, wantItems: 1, wantStores: 1},
		{name: "restrict refuses", policy: PolicyRestrict, wantErr: ErrStoreHasItems, wantItems: 2, wantStores: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			r := NewMemoryRepository(WithDeletePolicy(tt.policy))
			doomed := mustCreateStore(t, r, "Doomed")
			kept := mustCreateStore(t, r, "Kept")
			orphan := mustCreateItem(t, r, "Sneaker", doomed.ID)
			mustCreateItem(t, r, "Hat", kept.ID)

			removed, err := r.DeleteStore(ctx, doomed.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, removed, tt.wantRemoved)

			stats, err := r.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, Stats{Stores: tt.wantStores, Items: tt.wantItems}, stats)

			if tt.policy == PolicyOrphan {
				got, err := r.GetItem(ctx, orphan.ID)
				require.NoError(t, err)
				assert.Equal(t, doomed.ID, got.StoreID)
			}
		})
	}
}

func TestMemoryRepository_DeleteStore_Missing(t *testing.T) {
	r := NewMemoryRepository()

	_, err := r.DeleteStore(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrStoreNotFound)

	_, err = r.DeleteStore(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestMemoryRepository_CreateItem(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	shop := mustCreateStore(t, r, "Shoe Shop")
	other := mustCreateStore(t, r, "Other Shop")
	mustCreateItem(t, r, "Sneaker", shop.ID)

	tests := []struct {
		name    string
		item    *model.Item
		wantErr error
	}{
		{name: "new item", item: &model.Item{Name: "Boot", Price: 10, StoreID: shop.ID}},
		{name: "same name other store", item: &model.Item{Name: "Sneaker", Price: 10, StoreID: other.ID}},
		{name: "duplicate in store", item: &model.Item{Name: "Sneaker", Price: 10, StoreID: shop.ID}, wantErr: ErrItemExists},
		{name: "unknown store", item: &model.Item{Name: "Sandal", Price: 10, StoreID: "nope"}, wantErr: ErrStoreNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := r.Stats(ctx)
			require.NoError(t, err)

			created, err := r.CreateItem(ctx, tt.item)

			after, statErr := r.Stats(ctx)
			require.NoError(t, statErr)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before.Items, after.Items)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.Equal(t, before.Items+1, after.Items)
		})
	}
}

func TestMemoryRepository_CreateItem_Nil(t *testing.T) {
	_, err := NewMemoryRepository().CreateItem(context.Background(), nil)
	assert.Error(t, err)
}

func TestMemoryRepository_UpdateItem(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	shop := mustCreateStore(t, r, "Shop A")
	other := mustCreateStore(t, r, "Shop B")
	sneaker := mustCreateItem(t, r, "Sneaker", shop.ID)
	mustCreateItem(t, r, "Hat", other.ID)

	t.Run("merge", func(t *testing.T) {
		got, err := r.UpdateItem(ctx, sneaker.ID, &model.ItemPatch{Name: "Runner", Price: 55})
		require.NoError(t, err)
		assert.Equal(t, "Runner", got.Name)
		assert.Equal(t, 55, got.Price)
		assert.Equal(t, shop.ID, got.StoreID)
	})

	t.Run("own name", func(t *testing.T) {
		_, err := r.UpdateItem(ctx, sneaker.ID, &model.ItemPatch{Name: "Runner", Price: 56})
		assert.NoError(t, err)
	})

	t.Run("name used in another store", func(t *testing.T) {
		_, err := r.UpdateItem(ctx, sneaker.ID, &model.ItemPatch{Name: "Hat", Price: 1})
		assert.ErrorIs(t, err, ErrItemExists)
	})

	t.Run("store_id taken as is", func(t *testing.T) {
		dangling := "no-such-store"
		got, err := r.UpdateItem(ctx, sneaker.ID, &model.ItemPatch{Name: "Runner", Price: 1, StoreID: &dangling})
		require.NoError(t, err)
		assert.Equal(t, dangling, got.StoreID)
	})

	t.Run("missing item", func(t *testing.T) {
		_, err := r.UpdateItem(ctx, "nope", &model.ItemPatch{Name: "X"})
		assert.ErrorIs(t, err, ErrItemNotFound)
	})
}

func TestMemoryRepository_DeleteItem(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	shop := mustCreateStore(t, r, "Shop")
	item := mustCreateItem(t, r, "Sneaker", shop.ID)

	require.NoError(t, r.DeleteItem(ctx, item.ID))

	_, err := r.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, r.DeleteItem(ctx, item.ID), ErrItemNotFound)
	assert.ErrorIs(t, r.DeleteItem(ctx, ""), ErrInvalidID)
}

func TestMemoryRepository_ContextCancellation(t *testing.T) {
	r := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.ListStores(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.GetStore(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.CreateStore(ctx, &model.Store{Name: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.UpdateStore(ctx, "x", &model.Store{Name: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.DeleteStore(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.ListItems(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.GetItem(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.CreateItem(ctx, &model.Item{Name: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.UpdateItem(ctx, "x", &model.ItemPatch{Name: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, r.DeleteItem(ctx, "x"), context.Canceled)
	_, err = r.Stats(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRepository_ConcurrentCreateSameName(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	const workers = 50
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			if _, err := r.CreateStore(ctx, &model.Store{Name: "Contended"}); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())

	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Stores)
}
