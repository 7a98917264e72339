package domain

// CartEntry is a single product line in the shopper's cart
type CartEntry struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	// Kind records which catalog the product came from
	Kind CatalogKind `json:"kind,omitempty"`
}

// Wishlist is the shopper's single wishlist aggregate. ID is empty until the
// server assigns one on the first add.
type Wishlist struct {
	ID         string   `json:"id"`
	ProductIDs []string `json:"productIds"`
}

// Contains reports whether productID is in the wishlist
func (w Wishlist) Contains(productID string) bool {
	for _, id := range w.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy
func (w Wishlist) Clone() Wishlist {
	ids := make([]string, len(w.ProductIDs))
	copy(ids, w.ProductIDs)
	return Wishlist{ID: w.ID, ProductIDs: ids}
}
