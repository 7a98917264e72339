package marketplace

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/domain"
)

type addToCartRequest struct {
	ProductID string             `json:"productId"`
	Quantity  int                `json:"quantity"`
	Kind      domain.CatalogKind `json:"kind,omitempty"`
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

// ListCart returns the server-side cart
func (c *Client) ListCart(ctx context.Context) ([]domain.CartEntry, error) {
	var entries []domain.CartEntry
	if err := c.call(ctx, "list cart", http.MethodGet, "/cart", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AddToCart creates a cart entry and returns the server copy
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int, kind domain.CatalogKind) (domain.CartEntry, error) {
	var entry domain.CartEntry
	req := addToCartRequest{ProductID: productID, Quantity: quantity, Kind: kind}
	if err := c.call(ctx, "add to cart", http.MethodPost, "/cart", req, &entry); err != nil {
		return domain.CartEntry{}, err
	}
	return entry, nil
}

// UpdateCartQuantity sets the quantity of an existing cart entry
func (c *Client) UpdateCartQuantity(ctx context.Context, cartID string, quantity int) (domain.CartEntry, error) {
	var entry domain.CartEntry
	if err := c.call(ctx, "update cart", http.MethodPut, "/cart/"+url.PathEscape(cartID), updateCartRequest{Quantity: quantity}, &entry); err != nil {
		return domain.CartEntry{}, err
	}
	return entry, nil
}

// RemoveFromCart deletes a cart entry
func (c *Client) RemoveFromCart(ctx context.Context, cartID string) error {
	return c.call(ctx, "remove from cart", http.MethodDelete, "/cart/"+url.PathEscape(cartID), nil, nil)
}

type wishlistRequest struct {
	WishlistID string `json:"wishlistId,omitempty"`
	ProductID  string `json:"productId"`
}

// GetWishlist returns the server-side wishlist
func (c *Client) GetWishlist(ctx context.Context) (domain.Wishlist, error) {
	var wishlist domain.Wishlist
	if err := c.call(ctx, "get wishlist", http.MethodGet, "/wishlist", nil, &wishlist); err != nil {
		return domain.Wishlist{}, err
	}
	return wishlist, nil
}

// AddToWishlist adds a product. An empty wishlistID asks the server to create
// the wishlist.
func (c *Client) AddToWishlist(ctx context.Context, wishlistID, productID string) (domain.Wishlist, error) {
	var wishlist domain.Wishlist
	req := wishlistRequest{WishlistID: wishlistID, ProductID: productID}
	if err := c.call(ctx, "add to wishlist", http.MethodPost, "/wishlist", req, &wishlist); err != nil {
		return domain.Wishlist{}, err
	}
	return wishlist, nil
}

// RemoveFromWishlist removes a product from the wishlist
func (c *Client) RemoveFromWishlist(ctx context.Context, wishlistID, productID string) (domain.Wishlist, error) {
	var wishlist domain.Wishlist
	path := "/wishlist/" + url.PathEscape(wishlistID) + "/products/" + url.PathEscape(productID)
	if err := c.call(ctx, "remove from wishlist", http.MethodDelete, path, nil, &wishlist); err != nil {
		return domain.Wishlist{}, err
	}
	return wishlist, nil
}

// ListOwnedProducts returns the seller's own products
func (c *Client) ListOwnedProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.call(ctx, "list owned products", http.MethodGet, "/seller/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SaveProduct creates or updates a seller product and returns the server copy
func (c *Client) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	method, path := http.MethodPost, "/seller/products"
	if product.ID != "" {
		method, path = http.MethodPut, "/seller/products/"+url.PathEscape(product.ID)
	}

	var saved domain.Product
	if err := c.call(ctx, "save product", method, path, product, &saved); err != nil {
		return domain.Product{}, err
	}
	return saved, nil
}

// DeleteProduct deletes a seller product
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.call(ctx, "delete product", http.MethodDelete, "/seller/products/"+url.PathEscape(id), nil, nil)
}
