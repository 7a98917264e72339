package mutation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/marketplace"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Feature: storefront-sync, Property 7: Wishlist toggle involution
func TestProperty_WishlistToggleTwice(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("toggling a product twice restores membership", prop.ForAll(
		func(seeded []string, pick int) bool {
			api := newMockAPI()
			store := newTestStore(api)
			ctx := context.Background()

			for _, id := range seeded {
				if _, err := store.Wishlist.Toggle(ctx, id); err != nil {
					return false
				}
			}
			target := fmt.Sprintf("p%d", pick)
			before := store.Wishlist.Contains(target)

			if _, err := store.Wishlist.Toggle(ctx, target); err != nil {
				return false
			}
			if store.Wishlist.Contains(target) == before {
				return false
			}
			if _, err := store.Wishlist.Toggle(ctx, target); err != nil {
				return false
			}
			return store.Wishlist.Contains(target) == before
		},
		gen.SliceOfN(5, gen.IntRange(0, 9).Map(func(i int) string { return fmt.Sprintf("p%d", i) })).
			Map(func(ids []string) []string { return dedupeIDs(ids) }),
		gen.IntRange(0, 9),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestWishlistToggle_FirstAddAssignsID(t *testing.T) {
	api := newMockAPI()
	store := newTestStore(api)
	ctx := context.Background()

	wishlist, err := store.Wishlist.Toggle(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "wl-1", wishlist.ID)

	_, err = store.Wishlist.Toggle(ctx, "B")
	require.NoError(t, err)
	wishlist, err = store.Wishlist.Toggle(ctx, "A")
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, wishlist.ProductIDs)
	assert.Equal(t, []string{
		"add to wishlist:/A",
		"add to wishlist:wl-1/B",
		"remove from wishlist:wl-1/A",
	}, api.callLog())
}

func TestWishlistToggle_RemoveWithoutIDIsRejected(t *testing.T) {
	api := newMockAPI()
	store := newTestStore(api)
	// a persisted wishlist can only be restored with an id, so poke it directly
	store.Wishlist.set(domain.Wishlist{ProductIDs: []string{"A"}})

	_, err := store.Wishlist.Toggle(context.Background(), "A")

	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, api.callLog())
	assert.True(t, store.Wishlist.Contains("A"))
}

func TestWishlistToggle_FailureRollsBack(t *testing.T) {
	api := newMockAPI()
	store := newTestStore(api)
	ctx := context.Background()

	_, err := store.Wishlist.Toggle(ctx, "A")
	require.NoError(t, err)
	before := store.Wishlist.Get()

	api.failNext("add to wishlist")
	_, err = store.Wishlist.Toggle(ctx, "B")
	require.ErrorIs(t, err, domain.ErrRolledBack)
	assert.Equal(t, before, store.Wishlist.Get())

	api.failNext("remove from wishlist")
	_, err = store.Wishlist.Toggle(ctx, "A")
	require.ErrorIs(t, err, domain.ErrRolledBack)
	assert.Equal(t, before, store.Wishlist.Get())
}

func TestWishlistToggle_EmptyProductID(t *testing.T) {
	api := newMockAPI()
	store := newTestStore(api)

	_, err := store.Wishlist.Toggle(context.Background(), "")

	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, api.callLog())
}

func TestWishlistToggle_IsSerialized(t *testing.T) {
	api := newMockAPI()
	store := newTestStore(api)
	ctx := context.Background()

	gate := api.hold("add to wishlist")
	first := make(chan error, 1)
	go func() {
		_, err := store.Wishlist.Toggle(ctx, "A")
		first <- err
	}()
	waitEntered(t, api, "add to wishlist:/A")

	second := make(chan error, 1)
	go func() {
		_, err := store.Wishlist.Toggle(ctx, "B")
		second <- err
	}()
	assertNotEntered(t, api)

	close(gate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	// the second add saw the id the first one was assigned
	waitEntered(t, api, "add to wishlist:wl-1/B")
}

func TestWishlistRestore(t *testing.T) {
	store := newTestStore(newMockAPI())

	assert.Error(t, store.Wishlist.Restore(domain.Wishlist{ProductIDs: []string{"A"}}))

	require.NoError(t, store.Wishlist.Restore(domain.Wishlist{ID: "wl-9", ProductIDs: []string{"A", "B", "A", ""}}))
	assert.Equal(t, domain.Wishlist{ID: "wl-9", ProductIDs: []string{"A", "B"}}, store.Wishlist.Get())

	store.Wishlist.Reset()
	assert.Equal(t, "", store.Wishlist.Get().ID)
	assert.Empty(t, store.Wishlist.Get().ProductIDs)
}

func TestWishlistLoad(t *testing.T) {
	api := newMockAPI()
	api.wishlist = domain.Wishlist{ID: "wl-3", ProductIDs: []string{"A", "A", "B"}}
	store := newTestStore(api)

	wishlist, err := store.Wishlist.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.Wishlist{ID: "wl-3", ProductIDs: []string{"A", "B"}}, wishlist)
}

func newMarketplaceWishlist(t *testing.T, handler http.HandlerFunc) *Wishlist {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := marketplace.NewClient(marketplace.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, nil, zap.NewNop())
	return NewWishlist(client, nil, zap.NewNop())
}

func TestWishlistToggle_ReplyWithoutDataKeepsMembership(t *testing.T) {
	wishlist := newMarketplaceWishlist(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet:
			_, _ = io.WriteString(w, `{"success":true,"data":{"id":"w1","productIds":["a","b","c"]}}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/wishlist/w1/products/b":
			_, _ = io.WriteString(w, `{"success":true,"message":"removed"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"success":false,"message":"unexpected"}`)
		}
	})
	ctx := context.Background()

	_, err := wishlist.Load(ctx)
	require.NoError(t, err)

	got, err := wishlist.Toggle(ctx, "b")

	require.NoError(t, err)
	assert.Equal(t, domain.Wishlist{ID: "w1", ProductIDs: []string{"a", "c"}}, got)
	assert.Equal(t, got, wishlist.Get())
	assert.True(t, wishlist.Contains("a"))
	assert.True(t, wishlist.Contains("c"))
}

func TestWishlistToggle_DeltaReplyKeepsOtherProducts(t *testing.T) {
	wishlist := newMarketplaceWishlist(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// the add reply only echoes the product it added
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":"w7","productIds":["new"]}}`)
	})
	require.NoError(t, wishlist.Restore(domain.Wishlist{ID: "w7", ProductIDs: []string{"old"}}))

	got, err := wishlist.Toggle(context.Background(), "new")

	require.NoError(t, err)
	assert.Equal(t, domain.Wishlist{ID: "w7", ProductIDs: []string{"old", "new"}}, got)
}
