package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront/internal/dedupe"
	"storefront/internal/domain"
	"storefront/internal/notify"

	"go.uber.org/zap"
)

// ErrNoLocation is returned when a refresh is requested without a location value
var ErrNoLocation = &domain.ValidationError{Field: "location", Reason: "no location value to fetch the catalog for"}

const (
	opRefresh = "catalog.refresh"
	opProduct = "catalog.product"
)

// Fetcher loads catalog data from the marketplace
type Fetcher interface {
	FetchCatalog(ctx context.Context, locationValue string) (domain.Snapshot, error)
	FetchProduct(ctx context.Context, kind domain.CatalogKind, id string) (domain.Product, error)
}

// Cache holds both catalog partitions and the store set for one location
// value. The three collections are only ever replaced together.
type Cache struct {
	fetcher  Fetcher
	refresh  dedupe.Group[domain.Snapshot]
	products dedupe.Group[domain.Product]
	broker   *notify.Broker
	logger   *zap.Logger

	mu         sync.RWMutex
	snap       domain.Snapshot
	generation uint64
	// latest is the location value of the most recently issued generation
	latest    string
	committed uint64
}

// NewCache creates a new empty Cache
func NewCache(fetcher Fetcher, broker *notify.Broker, logger *zap.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		broker:  broker,
		logger:  logger,
		snap:    domain.EmptySnapshot(),
	}
}

// Refresh fetches the catalog for locationValue and replaces the cache with
// it, unless a refresh for another value was issued in the meantime. Concurrent
// refreshes of the same value share one request. On failure the cache is left
// as it was.
func (c *Cache) Refresh(ctx context.Context, locationValue string) (domain.Snapshot, error) {
	if locationValue == "" {
		return domain.Snapshot{}, ErrNoLocation
	}

	gen := c.issue(locationValue)
	c.logger.Debug("Catalog refresh issued",
		zap.String("location", locationValue),
		zap.Uint64("generation", gen),
	)

	snap, shared, err := c.refresh.Do(ctx, dedupe.Key{Operation: opRefresh, Value: locationValue}, func(ctx context.Context) (domain.Snapshot, error) {
		snap, err := c.fetcher.FetchCatalog(ctx, locationValue)
		if err != nil {
			return domain.Snapshot{}, err
		}
		snap.Stamp = locationValue
		if err := c.commit(snap); err != nil && !errors.Is(err, domain.ErrStaleGeneration) {
			return domain.Snapshot{}, err
		}
		return snap, nil
	})
	if err != nil {
		c.logger.Warn("Catalog refresh failed", zap.String("location", locationValue), zap.Error(err))
		return domain.Snapshot{}, fmt.Errorf("failed to refresh catalog: %w", err)
	}
	if shared {
		c.logger.Debug("Catalog refresh shared an in-flight request", zap.String("location", locationValue))
	}
	return snap, nil
}

// issue tags a new refresh with the next generation
func (c *Cache) issue(locationValue string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.latest = locationValue
	return c.generation
}

// commit installs snap if it still belongs to the latest issued generation
func (c *Cache) commit(snap domain.Snapshot) error {
	c.mu.Lock()
	if c.latest != snap.Stamp {
		latest := c.latest
		c.mu.Unlock()
		c.logger.Debug("Discarded superseded catalog refresh",
			zap.String("location", snap.Stamp),
			zap.String("latest", latest),
		)
		return domain.ErrStaleGeneration
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
	c.snap = snap
	c.committed = c.generation
	c.mu.Unlock()

	c.logger.Debug("Catalog refresh committed",
		zap.String("location", snap.Stamp),
		zap.Int("new_categories", snap.NewCatalog.Len()),
		zap.Int("used_categories", snap.UsedCatalog.Len()),
		zap.Int("stores", len(snap.Stores)),
	)
	c.broker.Publish(notify.TopicCatalog)
	return nil
}

// Clear empties all three collections. Refreshes still in flight are
// superseded and will not be committed.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.generation++
	c.latest = ""
	c.snap = domain.EmptySnapshot()
	c.mu.Unlock()

	c.broker.Publish(notify.TopicCatalog)
}

// Restore installs a persisted snapshot after validating it against the
// expected location value
func (c *Cache) Restore(snap domain.Snapshot, locationValue string) error {
	if snap.Stamp == "" || snap.Stamp != locationValue {
		return &domain.ValidationError{Field: "catalog.stamp", Reason: fmt.Sprintf("stamp %q does not match location %q", snap.Stamp, locationValue)}
	}
	if err := snap.NewCatalog.Validate(); err != nil {
		return err
	}
	if err := snap.UsedCatalog.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.latest = locationValue
	c.committed = c.generation
	if snap.NewCatalog == nil {
		snap.NewCatalog = domain.NewPartition()
	}
	if snap.UsedCatalog == nil {
		snap.UsedCatalog = domain.NewPartition()
	}
	if snap.Stores == nil {
		snap.Stores = []domain.Store{}
	}
	c.snap = snap
	return nil
}

// Snapshot returns the current cache contents. The partitions are shared and
// must not be modified.
func (c *Cache) Snapshot() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := c.snap
	snap.Stores = append([]domain.Store(nil), c.snap.Stores...)
	return snap
}

// Stamp returns the location value the cache contents were fetched for
func (c *Cache) Stamp() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Stamp
}

// IsStale reports whether the cache was fetched for a different location value
func (c *Cache) IsStale(currentValue string) bool {
	return c.Stamp() != currentValue
}

// Generation returns the generation of the last committed refresh
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.committed
}

// GetCategory returns the ordered products of a category, or nil
func (c *Cache) GetCategory(kind domain.CatalogKind, category string) []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Partition(kind).Get(category)
}

// Categories returns the category names of a catalog in server order
func (c *Cache) Categories(kind domain.CatalogKind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Partition(kind).Categories()
}

// GetProductByID finds a product in the cached partition
func (c *Cache) GetProductByID(kind domain.CatalogKind, id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Partition(kind).Find(id)
}

// Stores returns the stores serving the cached location
func (c *Cache) Stores() []domain.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Store(nil), c.snap.Stores...)
}

// LookupProduct returns the cached product or fetches it on a miss. A fetched
// product is not added to the partitions.
func (c *Cache) LookupProduct(ctx context.Context, kind domain.CatalogKind, id string) (domain.Product, error) {
	if product, ok := c.GetProductByID(kind, id); ok {
		return product, nil
	}

	product, _, err := c.products.Do(ctx, dedupe.Key{Operation: opProduct + "." + string(kind), Value: id}, func(ctx context.Context) (domain.Product, error) {
		return c.fetcher.FetchProduct(ctx, kind, id)
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to fetch product %s: %w", id, err)
	}
	return product, nil
}
