package mutation

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/domain"
	"storefront/internal/notify"

	"go.uber.org/zap"
)

// mockAPI is an in-memory marketplace. fail makes the next call of an
// operation fail; gate holds calls of an operation until it is closed.
type mockAPI struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]error
	gate     map[string]chan struct{}
	entered  chan string
	cart     map[string]domain.CartEntry
	wishlist domain.Wishlist
	products map[string]domain.Product
	seq      int
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		fail:     make(map[string]error),
		gate:     make(map[string]chan struct{}),
		entered:  make(chan string, 64),
		cart:     make(map[string]domain.CartEntry),
		products: make(map[string]domain.Product),
	}
}

func (m *mockAPI) failNext(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = &domain.NetworkError{Op: op, Status: 500, Message: "server exploded"}
}

func (m *mockAPI) hold(op string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gate[op] = gate
	return gate
}

func (m *mockAPI) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// enter records the call, waits on its gate and returns any injected failure
func (m *mockAPI) enter(ctx context.Context, op, detail string) error {
	m.mu.Lock()
	m.calls = append(m.calls, op+":"+detail)
	gate := m.gate[op]
	delete(m.gate, op)
	err := m.fail[op]
	delete(m.fail, op)
	m.mu.Unlock()

	m.entered <- op + ":" + detail
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *mockAPI) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *mockAPI) ListCart(ctx context.Context) ([]domain.CartEntry, error) {
	if err := m.enter(ctx, "list cart", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CartEntry, 0, len(m.cart))
	for _, e := range m.cart {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockAPI) AddToCart(ctx context.Context, productID string, quantity int, kind domain.CatalogKind) (domain.CartEntry, error) {
	if err := m.enter(ctx, "add to cart", productID); err != nil {
		return domain.CartEntry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := domain.CartEntry{ID: m.nextID("cart"), ProductID: productID, Quantity: quantity, Kind: kind}
	m.cart[entry.ID] = entry
	return entry, nil
}

func (m *mockAPI) UpdateCartQuantity(ctx context.Context, cartID string, quantity int) (domain.CartEntry, error) {
	if err := m.enter(ctx, "update cart quantity", fmt.Sprintf("%s=%d", cartID, quantity)); err != nil {
		return domain.CartEntry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.cart[cartID]
	entry.ID = cartID
	entry.Quantity = quantity
	m.cart[cartID] = entry
	return entry, nil
}

func (m *mockAPI) RemoveFromCart(ctx context.Context, cartID string) error {
	if err := m.enter(ctx, "remove from cart", cartID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cart, cartID)
	return nil
}

func (m *mockAPI) GetWishlist(ctx context.Context) (domain.Wishlist, error) {
	if err := m.enter(ctx, "get wishlist", ""); err != nil {
		return domain.Wishlist{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wishlist.Clone(), nil
}

func (m *mockAPI) AddToWishlist(ctx context.Context, wishlistID, productID string) (domain.Wishlist, error) {
	if err := m.enter(ctx, "add to wishlist", wishlistID+"/"+productID); err != nil {
		return domain.Wishlist{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wishlist.ID == "" {
		m.wishlist.ID = "wl-1"
	}
	if !m.wishlist.Contains(productID) {
		m.wishlist.ProductIDs = append(m.wishlist.ProductIDs, productID)
	}
	return m.wishlist.Clone(), nil
}

func (m *mockAPI) RemoveFromWishlist(ctx context.Context, wishlistID, productID string) (domain.Wishlist, error) {
	if err := m.enter(ctx, "remove from wishlist", wishlistID+"/"+productID); err != nil {
		return domain.Wishlist{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wishlist.ProductIDs = without(m.wishlist.ProductIDs, productID)
	return m.wishlist.Clone(), nil
}

func (m *mockAPI) ListOwnedProducts(ctx context.Context) ([]domain.Product, error) {
	if err := m.enter(ctx, "list products", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockAPI) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := m.enter(ctx, "save product", product.Name); err != nil {
		return domain.Product{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if product.ID == "" {
		product.ID = m.nextID("prod")
	}
	m.products[product.ID] = product
	return product, nil
}

func (m *mockAPI) DeleteProduct(ctx context.Context, id string) error {
	if err := m.enter(ctx, "delete product", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	return nil
}

func newTestStore(api API) *Store {
	return NewStore(api, notify.NewBroker(zap.NewNop()), zap.NewNop())
}

func inStock(id string) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, IsAvailable: true, Stock: 10}
}
