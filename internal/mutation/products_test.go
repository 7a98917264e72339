package mutation

import (
	"context"
	"testing"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductsSave(t *testing.T) {
	api := newMockAPI()
	store := newTestStore(api)
	ctx := context.Background()

	saved, err := store.Products.Save(ctx, domain.Product{Name: "Lamp", Price: decimal.NewFromInt(40), Stock: 2})
	require.NoError(t, err)
	assert.Equal(t, "prod-1", saved.ID)

	saved.Price = decimal.NewFromInt(35)
	_, err = store.Products.Save(ctx, saved)
	require.NoError(t, err)

	got, ok := store.Products.Get("prod-1")
	require.True(t, ok)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(35)))
	assert.Len(t, store.Products.List(), 1)
}

func TestProductsSave_Validation(t *testing.T) {
	tests := []struct {
		name    string
		product domain.Product
		field   string
	}{
		{"missing name", domain.Product{Price: decimal.NewFromInt(1)}, "name"},
		{"negative price", domain.Product{Name: "Lamp", Price: decimal.NewFromInt(-1)}, "price"},
		{"negative stock", domain.Product{Name: "Lamp", Stock: -3}, "stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newMockAPI()
			store := newTestStore(api)

			_, err := store.Products.Save(context.Background(), tt.product)

			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Empty(t, api.callLog())
		})
	}
}

func TestProductsSave_FailureLeavesNoLocalChange(t *testing.T) {
	api := newMockAPI()
	store := newTestStore(api)
	ctx := context.Background()

	existing, err := store.Products.Save(ctx, domain.Product{Name: "Lamp", Price: decimal.NewFromInt(40)})
	require.NoError(t, err)

	gate := api.hold("save product")
	api.failNext("save product")
	changed := existing
	changed.Name = "Lamp v2"

	done := make(chan error, 1)
	go func() {
		_, err := store.Products.Save(ctx, changed)
		done <- err
	}()
	waitEntered(t, api, "save product:Lamp")
	waitEntered(t, api, "save product:Lamp v2")

	// nothing is applied while the request is in flight
	got, _ := store.Products.Get(existing.ID)
	assert.Equal(t, "Lamp", got.Name)

	close(gate)
	err = <-done
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRolledBack)
	assert.Equal(t, StateFailed, Outcome(err))

	got, _ = store.Products.Get(existing.ID)
	assert.Equal(t, "Lamp", got.Name)
}

func TestProductsRemove(t *testing.T) {
	api := newMockAPI()
	store := newTestStore(api)
	ctx := context.Background()

	a, err := store.Products.Save(ctx, domain.Product{Name: "A"})
	require.NoError(t, err)
	b, err := store.Products.Save(ctx, domain.Product{Name: "B"})
	require.NoError(t, err)

	api.failNext("delete product")
	require.Error(t, store.Products.Remove(ctx, a.ID))
	assert.Len(t, store.Products.List(), 2)

	require.NoError(t, store.Products.Remove(ctx, a.ID))
	assert.Equal(t, []domain.Product{b}, store.Products.List())

	assert.True(t, domain.IsValidation(store.Products.Remove(ctx, "")))
}

func TestProductsRestore(t *testing.T) {
	store := newTestStore(newMockAPI())

	assert.Error(t, store.Products.Restore([]domain.Product{{Name: "no id"}}))
	assert.Error(t, store.Products.Restore([]domain.Product{{ID: "1"}, {ID: "1"}}))

	require.NoError(t, store.Products.Restore([]domain.Product{{ID: "2"}, {ID: "1"}}))
	list := store.Products.List()
	require.Len(t, list, 2)
	assert.Equal(t, "2", list[0].ID)

	store.Products.UpsertFromServer(domain.Product{Name: "ignored"})
	assert.Len(t, store.Products.List(), 2)
}

func TestStoreReset(t *testing.T) {
	api := newMockAPI()
	store := newTestStore(api)
	ctx := context.Background()

	_, err := store.Cart.Add(ctx, inStock("A"), domain.CatalogNew, 1)
	require.NoError(t, err)
	_, err = store.Wishlist.Toggle(ctx, "A")
	require.NoError(t, err)
	_, err = store.Products.Save(ctx, domain.Product{Name: "Lamp"})
	require.NoError(t, err)

	store.Reset()

	assert.Empty(t, store.Cart.Entries())
	assert.Empty(t, store.Wishlist.Get().ProductIDs)
	assert.Empty(t, store.Products.List())
}
