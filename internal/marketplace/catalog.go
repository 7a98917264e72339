package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"storefront/internal/domain"
)

type catalogResponse struct {
	Success                bool              `json:"success"`
	Message                string            `json:"message"`
	Stores                 []domain.Store    `json:"stores"`
	ProductsByCategory     *domain.Partition `json:"productsByCategory"`
	UsedProductsByCategory *domain.Partition `json:"usedProductsByCategory"`
}

// FetchCatalog loads both catalogs and the serving stores for a location value
func (c *Client) FetchCatalog(ctx context.Context, locationValue string) (domain.Snapshot, error) {
	const op = "fetch catalog"

	resp, err := c.do(ctx, op, http.MethodGet, "/products?location="+url.QueryEscape(locationValue), nil)
	if err != nil {
		return domain.Snapshot{}, err
	}

	var body catalogResponse
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return domain.Snapshot{}, &domain.NetworkError{Op: op, Status: resp.status, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if !body.Success || resp.status >= http.StatusBadRequest {
		return domain.Snapshot{}, &domain.NetworkError{Op: op, Status: resp.status, Message: body.Message}
	}

	snap := domain.Snapshot{
		Stamp:       locationValue,
		NewCatalog:  body.ProductsByCategory,
		UsedCatalog: body.UsedProductsByCategory,
		Stores:      body.Stores,
	}
	if snap.NewCatalog == nil {
		snap.NewCatalog = domain.NewPartition()
	}
	if snap.UsedCatalog == nil {
		snap.UsedCatalog = domain.NewPartition()
	}
	if snap.Stores == nil {
		snap.Stores = []domain.Store{}
	}
	return snap, nil
}

// FetchProduct loads a single product of either catalog
func (c *Client) FetchProduct(ctx context.Context, kind domain.CatalogKind, id string) (domain.Product, error) {
	path := "/products/" + url.PathEscape(id)
	if kind == domain.CatalogUsed {
		path = "/used-products/" + url.PathEscape(id)
	}

	var product domain.Product
	if err := c.call(ctx, "fetch product", http.MethodGet, path, nil, &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// ReverseGeocode resolves a coordinate pair to raw address fields
func (c *Client) ReverseGeocode(ctx context.Context, coords domain.Coordinates) (domain.RawAddress, error) {
	path := fmt.Sprintf("/reverse-geocode/%s/%s",
		url.PathEscape(formatCoord(coords.Latitude)),
		url.PathEscape(formatCoord(coords.Longitude)),
	)

	var raw domain.RawAddress
	if err := c.call(ctx, "reverse geocode", http.MethodGet, path, nil, &raw); err != nil {
		return domain.RawAddress{}, err
	}
	return raw, nil
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
