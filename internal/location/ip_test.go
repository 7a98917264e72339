package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPClient_Locate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"country_name":"India","region":"Maharashtra","city":"Mumbai","org":"AS55836 Reliance Jio","postal":"400001"}`))
	}))
	defer server.Close()

	info, err := NewIPClient(server.URL, nil).Locate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.Location{Pincode: "400001", City: "Mumbai", Country: "India"}, info.Location())
}

func TestIPClient_LocateFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewIPClient(server.URL, nil).Locate(context.Background())
	require.Error(t, err)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusTooManyRequests, netErr.Status)
}
