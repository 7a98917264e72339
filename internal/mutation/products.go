package mutation

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/domain"
	"storefront/internal/notify"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// ProductAPI is the marketplace seller product endpoint set
type ProductAPI interface {
	ListOwnedProducts(ctx context.Context) ([]domain.Product, error)
	SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// Products caches the seller's own products. Changes are applied only after
// the server confirmed them.
type Products struct {
	api    ProductAPI
	locks  keyedMutex
	broker *notify.Broker
	logger *zap.Logger

	mu   sync.RWMutex
	byID *orderedmap.OrderedMap[string, domain.Product]
}

// NewProducts creates an empty owned product cache
func NewProducts(api ProductAPI, broker *notify.Broker, logger *zap.Logger) *Products {
	return &Products{api: api, broker: broker, logger: logger, byID: orderedmap.New[string, domain.Product]()}
}

// Save sends a create or update to the server and stores the confirmed product
func (p *Products) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	if product.Name == "" {
		return domain.Product{}, &domain.ValidationError{Field: "name", Reason: "is required"}
	}
	if product.Price.IsNegative() {
		return domain.Product{}, &domain.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if product.Stock < 0 {
		return domain.Product{}, &domain.ValidationError{Field: "stock", Reason: "must not be negative"}
	}

	key := product.ID
	if key == "" {
		key = "new:" + product.Name
	}
	unlock := p.locks.Lock(key)
	defer unlock()

	return execute(ctx, p.logger, step[domain.Product]{
		entity:    "product:" + key,
		op:        "save product",
		dispatch:  func(ctx context.Context) (domain.Product, error) { return p.api.SaveProduct(ctx, product) },
		reconcile: func(saved domain.Product) domain.Product {
			p.UpsertFromServer(saved)
			return saved
		},
	})
}

// UpsertFromServer stores a server-confirmed product
func (p *Products) UpsertFromServer(product domain.Product) {
	if product.ID == "" {
		p.logger.Warn("Ignoring server product without id", zap.String("name", product.Name))
		return
	}
	p.mu.Lock()
	p.byID.Set(product.ID, product)
	p.mu.Unlock()

	p.broker.Publish(notify.TopicProducts)
}

// Remove deletes a product on the server, then locally
func (p *Products) Remove(ctx context.Context, id string) error {
	if id == "" {
		return &domain.ValidationError{Field: "id", Reason: "is required"}
	}
	unlock := p.locks.Lock(id)
	defer unlock()

	_, err := execute(ctx, p.logger, step[struct{}]{
		entity: "product:" + id,
		op:     "delete product",
		dispatch: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.api.DeleteProduct(ctx, id)
		},
		reconcile: func(struct{}) struct{} {
			p.removeLocal(id)
			return struct{}{}
		},
	})
	return err
}

// Get returns an owned product
func (p *Products) Get(id string) (domain.Product, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byID.Get(id)
}

// List returns owned products in first-seen order
func (p *Products) List() []domain.Product {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Product, 0, p.byID.Len())
	for pair := p.byID.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Load replaces the local cache with the server's list
func (p *Products) Load(ctx context.Context) ([]domain.Product, error) {
	products, err := p.api.ListOwnedProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load owned products: %w", err)
	}
	if err := p.Restore(products); err != nil {
		return nil, err
	}
	p.broker.Publish(notify.TopicProducts)
	return p.List(), nil
}

// Restore installs products after checking that ids are present and unique
func (p *Products) Restore(products []domain.Product) error {
	byID := orderedmap.New[string, domain.Product]()
	for _, product := range products {
		if product.ID == "" {
			return &domain.ValidationError{Field: "products", Reason: "product without id"}
		}
		if _, dup := byID.Set(product.ID, product); dup {
			return &domain.ValidationError{Field: "products", Reason: fmt.Sprintf("product %s appears twice", product.ID)}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID = byID
	return nil
}

// Reset empties the cache
func (p *Products) Reset() {
	p.mu.Lock()
	p.byID = orderedmap.New[string, domain.Product]()
	p.mu.Unlock()
	p.broker.Publish(notify.TopicProducts)
}

func (p *Products) removeLocal(id string) {
	p.mu.Lock()
	p.byID.Delete(id)
	p.mu.Unlock()
	p.broker.Publish(notify.TopicProducts)
}
