package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"storefront/internal/domain"
)

// IPInfo is the payload of the IP geolocation service
type IPInfo struct {
	CountryName string `json:"country_name"`
	Region      string `json:"region"`
	City        string `json:"city"`
	Org         string `json:"org"`
	Postal      string `json:"postal"`
}

// Location converts the payload to a canonical location. The organization
// name is an ISP, never a city, so a missing city stays missing.
func (i IPInfo) Location() domain.Location {
	return Clean(domain.Location{
		Pincode: i.Postal,
		City:    i.City,
		Country: i.CountryName,
	})
}

// IPClient queries a third-party IP geolocation endpoint
type IPClient struct {
	url  string
	http *http.Client
}

// NewIPClient creates a new IPClient
func NewIPClient(url string, httpClient *http.Client) *IPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IPClient{url: url, http: httpClient}
}

// Locate looks up the caller's public IP
func (c *IPClient) Locate(ctx context.Context) (IPInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return IPInfo{}, fmt.Errorf("failed to build ip lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return IPInfo{}, &domain.NetworkError{Op: "ip lookup", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return IPInfo{}, &domain.NetworkError{Op: "ip lookup", Status: res.StatusCode}
	}

	var info IPInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return IPInfo{}, &domain.NetworkError{Op: "ip lookup", Status: res.StatusCode, Err: err}
	}
	return info, nil
}
