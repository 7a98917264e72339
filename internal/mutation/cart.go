package mutation

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/domain"
	"storefront/internal/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// provisionalPrefix marks cart ids assigned locally before the server answers
const provisionalPrefix = "local-"

// CartAPI is the marketplace cart endpoint set
type CartAPI interface {
	ListCart(ctx context.Context) ([]domain.CartEntry, error)
	AddToCart(ctx context.Context, productID string, quantity int, kind domain.CatalogKind) (domain.CartEntry, error)
	UpdateCartQuantity(ctx context.Context, cartID string, quantity int) (domain.CartEntry, error)
	RemoveFromCart(ctx context.Context, cartID string) error
}

// Cart holds the shopper's cart entries, at most one per product
type Cart struct {
	api    CartAPI
	locks  keyedMutex
	broker *notify.Broker
	logger *zap.Logger

	mu      sync.RWMutex
	entries []domain.CartEntry
}

// NewCart creates an empty Cart
func NewCart(api CartAPI, broker *notify.Broker, logger *zap.Logger) *Cart {
	return &Cart{api: api, broker: broker, logger: logger}
}

// Add puts quantity of product into the cart, merging into an existing entry
// for the same product. It is rejected locally for a non-positive quantity or
// a product that cannot be bought.
func (c *Cart) Add(ctx context.Context, product domain.Product, kind domain.CatalogKind, quantity int) (domain.CartEntry, error) {
	if quantity < 1 {
		return domain.CartEntry{}, &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if product.ID == "" {
		return domain.CartEntry{}, &domain.ValidationError{Field: "productId", Reason: "is required"}
	}
	if kind == "" {
		kind = domain.CatalogNew
	}
	if !product.Purchasable(kind) {
		return domain.CartEntry{}, &domain.ValidationError{Field: "product", Reason: unavailableReason(product, kind)}
	}

	unlock := c.locks.Lock(product.ID)
	defer unlock()

	if existing, ok := c.findByProduct(product.ID); ok {
		return c.setQuantity(ctx, existing, existing.Quantity+quantity, "add to cart")
	}

	provisional := domain.CartEntry{
		ID:        provisionalPrefix + uuid.NewString(),
		ProductID: product.ID,
		Quantity:  quantity,
		Kind:      kind,
	}
	return execute(ctx, c.logger, step[domain.CartEntry]{
		entity: "cart:" + product.ID,
		op:     "add to cart",
		apply: func() func() {
			c.mu.Lock()
			c.entries = append(c.entries, provisional)
			c.mu.Unlock()
			c.broker.Publish(notify.TopicCart)
			return func() {
				c.replace(provisional.ID, nil)
			}
		},
		dispatch: func(ctx context.Context) (domain.CartEntry, error) {
			return c.api.AddToCart(ctx, product.ID, quantity, kind)
		},
		reconcile: func(server domain.CartEntry) domain.CartEntry {
			server = confirmed(server, provisional)
			c.replace(provisional.ID, &server)
			return server
		},
	})
}

// UpdateQuantity sets the quantity of a cart entry
func (c *Cart) UpdateQuantity(ctx context.Context, cartID string, quantity int) (domain.CartEntry, error) {
	if quantity < 1 {
		return domain.CartEntry{}, &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}

	entry, ok := c.find(cartID)
	if !ok {
		return domain.CartEntry{}, fmt.Errorf("cart entry %s: %w", cartID, domain.ErrNotFound)
	}

	unlock := c.locks.Lock(entry.ProductID)
	defer unlock()

	// re-read under the entity lock so this edit builds on the previous one
	entry, ok = c.find(cartID)
	if !ok {
		return domain.CartEntry{}, fmt.Errorf("cart entry %s: %w", cartID, domain.ErrNotFound)
	}
	return c.setQuantity(ctx, entry, quantity, "update cart quantity")
}

// setQuantity runs an optimistic quantity change. Callers hold the product lock.
func (c *Cart) setQuantity(ctx context.Context, entry domain.CartEntry, quantity int, op string) (domain.CartEntry, error) {
	updated := entry
	updated.Quantity = quantity

	return execute(ctx, c.logger, step[domain.CartEntry]{
		entity: "cart:" + entry.ProductID,
		op:     op,
		apply: func() func() {
			c.replace(entry.ID, &updated)
			return func() {
				previous := entry
				c.replace(entry.ID, &previous)
			}
		},
		dispatch: func(ctx context.Context) (domain.CartEntry, error) {
			return c.api.UpdateCartQuantity(ctx, entry.ID, quantity)
		},
		reconcile: func(server domain.CartEntry) domain.CartEntry {
			server = confirmed(server, updated)
			c.replace(entry.ID, &server)
			return server
		},
	})
}

// Remove deletes a cart entry
func (c *Cart) Remove(ctx context.Context, cartID string) error {
	entry, ok := c.find(cartID)
	if !ok {
		return fmt.Errorf("cart entry %s: %w", cartID, domain.ErrNotFound)
	}

	unlock := c.locks.Lock(entry.ProductID)
	defer unlock()

	entry, ok = c.find(cartID)
	if !ok {
		return fmt.Errorf("cart entry %s: %w", cartID, domain.ErrNotFound)
	}

	_, err := execute(ctx, c.logger, step[struct{}]{
		entity: "cart:" + entry.ProductID,
		op:     "remove from cart",
		apply: func() func() {
			index := c.replace(entry.ID, nil)
			return func() {
				c.insert(index, entry)
			}
		},
		dispatch: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.api.RemoveFromCart(ctx, entry.ID)
		},
	})
	return err
}

// Load replaces the local cart with the server's
func (c *Cart) Load(ctx context.Context) ([]domain.CartEntry, error) {
	entries, err := c.api.ListCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if err := c.Restore(entries); err != nil {
		return nil, err
	}
	c.broker.Publish(notify.TopicCart)
	return c.Entries(), nil
}

// Restore installs entries after checking the cart invariants
func (c *Cart) Restore(entries []domain.CartEntry) error {
	if err := ValidateEntries(entries); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append([]domain.CartEntry(nil), entries...)
	return nil
}

// Reset empties the cart
func (c *Cart) Reset() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
	c.broker.Publish(notify.TopicCart)
}

// Entries returns a copy of the cart entries in insertion order
func (c *Cart) Entries() []domain.CartEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.CartEntry{}, c.entries...)
}

// Get returns a cart entry by id
func (c *Cart) Get(cartID string) (domain.CartEntry, bool) {
	return c.find(cartID)
}

// Total sums final price times quantity for every entry lookup can price.
// Entries whose product is unknown are skipped and counted in missing.
func (c *Cart) Total(lookup func(kind domain.CatalogKind, productID string) (domain.Product, bool)) (total decimal.Decimal, missing int) {
	for _, entry := range c.Entries() {
		product, ok := lookup(entry.Kind, entry.ProductID)
		if !ok {
			missing++
			continue
		}
		total = total.Add(product.FinalPrice().Mul(decimal.NewFromInt(int64(entry.Quantity))))
	}
	return total, missing
}

// ValidateEntries checks positive quantities and one entry per product
func ValidateEntries(entries []domain.CartEntry) error {
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.ID == "" || entry.ProductID == "" {
			return &domain.ValidationError{Field: "cart", Reason: "entry without id or product id"}
		}
		if entry.Quantity < 1 {
			return &domain.ValidationError{Field: "cart", Reason: fmt.Sprintf("entry %s has quantity %d", entry.ID, entry.Quantity)}
		}
		if seen[entry.ProductID] {
			return &domain.ValidationError{Field: "cart", Reason: fmt.Sprintf("product %s appears twice", entry.ProductID)}
		}
		seen[entry.ProductID] = true
	}
	return nil
}

func (c *Cart) find(cartID string) (domain.CartEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, entry := range c.entries {
		if entry.ID == cartID {
			return entry, true
		}
	}
	return domain.CartEntry{}, false
}

func (c *Cart) findByProduct(productID string) (domain.CartEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, entry := range c.entries {
		if entry.ProductID == productID {
			return entry, true
		}
	}
	return domain.CartEntry{}, false
}

// replace swaps the entry with id for with, or deletes it when with is nil.
// It returns the index the entry had, or -1.
func (c *Cart) replace(id string, with *domain.CartEntry) int {
	c.mu.Lock()
	index := -1
	for i, entry := range c.entries {
		if entry.ID == id {
			index = i
			break
		}
	}
	if index >= 0 {
		if with != nil {
			c.entries[index] = *with
		} else {
			c.entries = append(c.entries[:index], c.entries[index+1:]...)
		}
	}
	c.mu.Unlock()

	c.broker.Publish(notify.TopicCart)
	return index
}

func (c *Cart) insert(index int, entry domain.CartEntry) {
	c.mu.Lock()
	if index < 0 || index > len(c.entries) {
		index = len(c.entries)
	}
	c.entries = append(c.entries, domain.CartEntry{})
	copy(c.entries[index+1:], c.entries[index:])
	c.entries[index] = entry
	c.mu.Unlock()

	c.broker.Publish(notify.TopicCart)
}

// confirmed fills fields the server left out from the local value
func confirmed(server, local domain.CartEntry) domain.CartEntry {
	if server.ID == "" {
		server.ID = local.ID
	}
	if server.ProductID == "" {
		server.ProductID = local.ProductID
	}
	if server.Quantity < 1 {
		server.Quantity = local.Quantity
	}
	if server.Kind == "" {
		server.Kind = local.Kind
	}
	return server
}

func unavailableReason(product domain.Product, kind domain.CatalogKind) string {
	switch {
	case kind == domain.CatalogUsed:
		return "product is already sold"
	case !product.IsAvailable:
		return "product is not available"
	default:
		return "product is out of stock"
	}
}
