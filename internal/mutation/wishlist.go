package mutation

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/domain"
	"storefront/internal/notify"

	"go.uber.org/zap"
)

const wishlistKey = "wishlist"

// WishlistAPI is the marketplace wishlist endpoint set
type WishlistAPI interface {
	GetWishlist(ctx context.Context) (domain.Wishlist, error)
	AddToWishlist(ctx context.Context, wishlistID, productID string) (domain.Wishlist, error)
	RemoveFromWishlist(ctx context.Context, wishlistID, productID string) (domain.Wishlist, error)
}

// Wishlist holds the shopper's single wishlist aggregate. Toggles are
// serialized because the first add assigns the id every later toggle needs.
type Wishlist struct {
	api    WishlistAPI
	locks  keyedMutex
	broker *notify.Broker
	logger *zap.Logger

	mu       sync.RWMutex
	wishlist domain.Wishlist
}

// NewWishlist creates an empty Wishlist
func NewWishlist(api WishlistAPI, broker *notify.Broker, logger *zap.Logger) *Wishlist {
	return &Wishlist{api: api, broker: broker, logger: logger}
}

// Toggle removes productID when present and adds it otherwise
func (w *Wishlist) Toggle(ctx context.Context, productID string) (domain.Wishlist, error) {
	if productID == "" {
		return domain.Wishlist{}, &domain.ValidationError{Field: "productId", Reason: "is required"}
	}

	unlock := w.locks.Lock(wishlistKey)
	defer unlock()

	before := w.Get()
	present := before.Contains(productID)
	if present && before.ID == "" {
		return domain.Wishlist{}, &domain.ValidationError{Field: "wishlist", Reason: "has no server id to remove from"}
	}

	op := "add to wishlist"
	if present {
		op = "remove from wishlist"
	}

	next := before.Clone()
	if present {
		next.ProductIDs = without(next.ProductIDs, productID)
	} else {
		next.ProductIDs = append(next.ProductIDs, productID)
	}

	return execute(ctx, w.logger, step[domain.Wishlist]{
		entity: "wishlist:" + productID,
		op:     op,
		apply: func() func() {
			w.set(next)
			return func() {
				w.set(before)
			}
		},
		dispatch: func(ctx context.Context) (domain.Wishlist, error) {
			if present {
				return w.api.RemoveFromWishlist(ctx, before.ID, productID)
			}
			return w.api.AddToWishlist(ctx, before.ID, productID)
		},
		// replies may omit data or carry only the toggled product, so the
		// server only confirms the id; membership stays as applied
		reconcile: func(server domain.Wishlist) domain.Wishlist {
			settled := next.Clone()
			if server.ID != "" {
				settled.ID = server.ID
			}
			w.set(settled)
			return settled
		},
	})
}

// Contains reports whether productID is wishlisted
func (w *Wishlist) Contains(productID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.wishlist.Contains(productID)
}

// Get returns a copy of the wishlist
func (w *Wishlist) Get() domain.Wishlist {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.wishlist.Clone()
}

// Load replaces the local wishlist with the server's
func (w *Wishlist) Load(ctx context.Context) (domain.Wishlist, error) {
	wishlist, err := w.api.GetWishlist(ctx)
	if err != nil {
		return domain.Wishlist{}, fmt.Errorf("failed to load wishlist: %w", err)
	}
	wishlist.ProductIDs = dedupeIDs(wishlist.ProductIDs)
	w.set(wishlist)
	return w.Get(), nil
}

// Restore installs a persisted wishlist, dropping duplicate ids
func (w *Wishlist) Restore(wishlist domain.Wishlist) error {
	if wishlist.ID == "" && len(wishlist.ProductIDs) > 0 {
		return &domain.ValidationError{Field: "wishlist", Reason: "products without a wishlist id"}
	}
	wishlist.ProductIDs = dedupeIDs(wishlist.ProductIDs)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.wishlist = wishlist
	return nil
}

// Reset empties the wishlist and forgets its id
func (w *Wishlist) Reset() {
	w.set(domain.Wishlist{})
}

func (w *Wishlist) set(wishlist domain.Wishlist) {
	w.mu.Lock()
	w.wishlist = wishlist.Clone()
	w.mu.Unlock()
	w.broker.Publish(notify.TopicWishlist)
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
