package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second, MaxFailures: 2, OpenTimeout: time.Minute}, nil, zap.NewNop())
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	raw, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": success, "data": json.RawMessage(raw), "message": message})
}

func TestFetchCatalog_KeepsCategoryOrder(t *testing.T) {
	queries := make(chan string, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query().Get("location")
		assert.Equal(t, "/products", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"success": true,
			"stores": [{"id": "s1", "name": "Corner", "isActive": true}],
			"productsByCategory": {
				"Sofas": [{"id": "n1", "name": "Sofa", "price": 100, "isAvailable": true, "stock": 2}],
				"Beds": [{"id": "n2", "name": "Bed", "price": "250.50", "isAvailable": true, "stock": 1}],
				"Appliances": []
			},
			"usedProductsByCategory": {
				"Tables": [{"id": "u1", "name": "Table", "price": 30, "isSold": false}]
			}
		}`)
	})

	snap, err := client.FetchCatalog(context.Background(), "560001 Bengaluru")

	require.NoError(t, err)
	assert.Equal(t, "560001 Bengaluru", <-queries)
	assert.Equal(t, "560001 Bengaluru", snap.Stamp)
	assert.Equal(t, []string{"Sofas", "Beds", "Appliances"}, snap.NewCatalog.Categories())
	assert.Equal(t, []string{"Tables"}, snap.UsedCatalog.Categories())
	require.Len(t, snap.Stores, 1)
	assert.Equal(t, "s1", snap.Stores[0].ID)

	bed, ok := snap.NewCatalog.Find("n2")
	require.True(t, ok)
	assert.Equal(t, "250.5", bed.Price.String())
}

func TestFetchCatalog_MissingPartitionsAreEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": true}`)
	})

	snap, err := client.FetchCatalog(context.Background(), "x")

	require.NoError(t, err)
	assert.Equal(t, 0, snap.NewCatalog.Len())
	assert.Equal(t, 0, snap.UsedCatalog.Len())
	assert.NotNil(t, snap.Stores)
}

func TestFetchCatalog_FailureEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success": false, "message": "unknown location"}`)
	})

	_, err := client.FetchCatalog(context.Background(), "nowhere")

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusBadRequest, netErr.Status)
	assert.Equal(t, "unknown location", netErr.Message)
}

func TestCall_EnvelopeHandling(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		success    bool
		message    string
		wantStatus int
		notFound   bool
	}{
		{"success false with 200", http.StatusOK, false, "cart locked", http.StatusOK, false},
		{"not found", http.StatusNotFound, false, "no such entry", http.StatusNotFound, true},
		{"conflict", http.StatusConflict, false, "out of stock", http.StatusConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tt.status, tt.success, nil, tt.message)
			})

			_, err := client.UpdateCartQuantity(context.Background(), "c1", 2)

			var netErr *domain.NetworkError
			require.ErrorAs(t, err, &netErr)
			assert.Equal(t, tt.wantStatus, netErr.Status)
			assert.Equal(t, tt.message, netErr.Message)
			assert.Equal(t, tt.notFound, errors.Is(err, domain.ErrNotFound))
		})
	}
}

func TestCall_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})

	_, err := client.GetWishlist(context.Background())

	assert.True(t, domain.IsNetwork(err))
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeEnvelope(w, http.StatusBadGateway, false, nil, "upstream down")
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.ListCart(ctx)
		var netErr *domain.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, http.StatusBadGateway, netErr.Status)
		assert.Equal(t, "upstream down", netErr.Message)
	}
	assert.Equal(t, "open", client.BreakerState())

	_, err := client.ListCart(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, domain.IsNetwork(err))
	assert.Equal(t, int32(2), hits.Load())
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, false, nil, "gone")
	})

	for i := 0; i < 5; i++ {
		_, err := client.FetchProduct(context.Background(), domain.CatalogNew, "p1")
		require.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.Equal(t, "closed", client.BreakerState())
}

func TestMutations_RequestShape(t *testing.T) {
	type seen struct {
		method, path string
		body         map[string]any
	}
	var (
		mu   sync.Mutex
		last seen
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		current := seen{method: r.Method, path: r.URL.EscapedPath()}
		_ = json.NewDecoder(r.Body).Decode(&current.body)
		mu.Lock()
		last = current
		mu.Unlock()
		switch {
		case r.URL.Path == "/cart" && r.Method == http.MethodPost:
			writeEnvelope(w, http.StatusCreated, true, domain.CartEntry{ID: "c9", ProductID: "p1", Quantity: 2, Kind: domain.CatalogUsed}, "")
		case r.URL.Path == "/wishlist":
			writeEnvelope(w, http.StatusOK, true, domain.Wishlist{ID: "w1", ProductIDs: []string{"p1"}}, "")
		default:
			writeEnvelope(w, http.StatusOK, true, nil, "")
		}
	})
	got := func() seen {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
	ctx := context.Background()

	entry, err := client.AddToCart(ctx, "p1", 2, domain.CatalogUsed)
	require.NoError(t, err)
	assert.Equal(t, "c9", entry.ID)
	assert.Equal(t, seen{http.MethodPost, "/cart", map[string]any{"productId": "p1", "quantity": float64(2), "kind": "used"}}, got())

	wishlist, err := client.AddToWishlist(ctx, "", "p1")
	require.NoError(t, err)
	assert.Equal(t, "w1", wishlist.ID)
	assert.Equal(t, map[string]any{"productId": "p1"}, got().body)

	_, err = client.RemoveFromWishlist(ctx, "w1", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/wishlist/w1/products/a%2Fb", got().path)

	require.NoError(t, client.RemoveFromCart(ctx, "c9"))
	assert.Equal(t, http.MethodDelete, got().method)

	_, err = client.SaveProduct(ctx, domain.Product{Name: "Lamp"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, got().method)
	assert.Equal(t, "/seller/products", got().path)

	_, err = client.SaveProduct(ctx, domain.Product{ID: "p7", Name: "Lamp"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, got().method)
	assert.Equal(t, "/seller/products/p7", got().path)

	_, err = client.FetchProduct(ctx, domain.CatalogUsed, "u1")
	require.NoError(t, err)
	assert.Equal(t, "/used-products/u1", got().path)
}

func TestReverseGeocode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse-geocode/12.971600/77.594600", r.URL.Path)
		_, _ = io.WriteString(w, `{"success": true, "data": {"city": "Bengaluru", "pincode": "560001"}}`)
	})

	raw, err := client.ReverseGeocode(context.Background(), domain.Coordinates{Latitude: 12.9716, Longitude: 77.5946})

	require.NoError(t, err)
	assert.Equal(t, "Bengaluru", raw.City)
	assert.Equal(t, "560001", raw.Pincode)
}

func TestContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListCart(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}
