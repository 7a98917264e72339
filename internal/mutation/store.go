// Package mutation holds the shopper's cart, wishlist and owned products and
// applies changes to them optimistically where that is safe.
package mutation

import (
	"storefront/internal/notify"

	"go.uber.org/zap"
)

// API is everything the mutation store needs from the marketplace
type API interface {
	CartAPI
	WishlistAPI
	ProductAPI
}

// Store groups the three mutable collections of a session
type Store struct {
	Cart     *Cart
	Wishlist *Wishlist
	Products *Products
}

// NewStore creates a new Store
func NewStore(api API, broker *notify.Broker, logger *zap.Logger) *Store {
	return &Store{
		Cart:     NewCart(api, broker, logger.Named("cart")),
		Wishlist: NewWishlist(api, broker, logger.Named("wishlist")),
		Products: NewProducts(api, broker, logger.Named("products")),
	}
}

// Reset empties every collection
func (s *Store) Reset() {
	s.Cart.Reset()
	s.Wishlist.Reset()
	s.Products.Reset()
}
