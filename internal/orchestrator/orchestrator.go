package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/catalog"
	"storefront/internal/domain"
	"storefront/internal/location"
	"storefront/internal/mutation"
	"storefront/internal/notify"
	"storefront/internal/persistence"

	"go.uber.org/zap"
)

// Result describes the outcome of a location change or refresh
type Result struct {
	Location domain.Location      `json:"location"`
	Key      domain.Discriminator `json:"key"`
	Source   location.Source      `json:"source,omitempty"`
	// Changed is true when the cache key changed and the catalog was replaced
	Changed  bool            `json:"changed"`
	Fetched  bool            `json:"fetched"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

// Orchestrator keeps the catalog in step with the active location and the
// persisted state in step with memory
type Orchestrator struct {
	resolver *location.Resolver
	cache    *catalog.Cache
	store    *mutation.Store
	persist  persistence.Store
	broker   *notify.Broker
	logger   *zap.Logger
}

// New creates a new Orchestrator
func New(
	resolver *location.Resolver,
	cache *catalog.Cache,
	store *mutation.Store,
	persist persistence.Store,
	broker *notify.Broker,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		cache:    cache,
		store:    store,
		persist:  persist,
		broker:   broker,
		logger:   logger,
	}
}

// SetLocation activates a location chosen by the shopper
func (o *Orchestrator) SetLocation(ctx context.Context, loc domain.Location) (Result, error) {
	changed := o.resolver.SetActive(loc)
	return o.sync(ctx, changed, "")
}

// CommitEdited activates the shopper's draft location
func (o *Orchestrator) CommitEdited(ctx context.Context) (Result, error) {
	_, changed := o.resolver.CommitEdited()
	return o.sync(ctx, changed, "")
}

// Resolve runs device then IP resolution and syncs the catalog to the result
func (o *Orchestrator) Resolve(ctx context.Context, geo location.Geolocator) (Result, error) {
	_, source, changed := o.resolver.Resolve(ctx, geo)
	return o.sync(ctx, changed, source)
}

// Refresh is the entry point UI surfaces call before rendering catalog data.
// Without force it returns the cached catalog when it belongs to the active
// location; with force it re-fetches without clearing first.
func (o *Orchestrator) Refresh(ctx context.Context, force bool) (Result, error) {
	active := o.resolver.Active()
	key := active.Discriminator()
	result := Result{Location: active, Key: key}

	if key.IsEmpty() {
		return result, catalog.ErrNoLocation
	}

	if o.cache.IsStale(key.Value) {
		o.cache.Clear()
	} else if !force {
		result.Snapshot = o.cache.Snapshot()
		return result, nil
	}

	snap, err := o.cache.Refresh(ctx, key.Value)
	if err != nil {
		result.Snapshot = o.cache.Snapshot()
		return result, err
	}
	result.Fetched = true
	result.Snapshot = snap
	return result, nil
}

// sync clears and refetches the catalog when the cache key changed or the
// cache belongs to another location. An empty location fetches nothing.
func (o *Orchestrator) sync(ctx context.Context, changed bool, source location.Source) (Result, error) {
	active := o.resolver.Active()
	key := active.Discriminator()
	result := Result{Location: active, Key: key, Source: source, Changed: changed}

	if key.IsEmpty() {
		if changed {
			o.cache.Clear()
		}
		result.Snapshot = o.cache.Snapshot()
		return result, nil
	}

	if !changed && !o.cache.IsStale(key.Value) {
		result.Snapshot = o.cache.Snapshot()
		return result, nil
	}

	o.logger.Info("Location key changed, refreshing catalog",
		zap.String("field", key.Field),
		zap.String("value", key.Value),
	)
	o.cache.Clear()

	snap, err := o.cache.Refresh(ctx, key.Value)
	if err != nil {
		result.Snapshot = o.cache.Snapshot()
		return result, err
	}
	result.Fetched = true
	result.Snapshot = snap
	return result, nil
}

// Logout clears every collection in memory and in storage
func (o *Orchestrator) Logout(ctx context.Context) error {
	o.store.Reset()
	o.cache.Clear()
	o.resolver.Reset()

	if err := o.persist.Delete(ctx, persistence.AllKeys...); err != nil {
		return fmt.Errorf("failed to clear persisted state: %w", err)
	}
	o.logger.Info("Session state cleared")
	return nil
}

// LoadSession replaces the cart, wishlist and owned products with the
// server's copies. Each collection is loaded independently.
func (o *Orchestrator) LoadSession(ctx context.Context) error {
	var errs []error
	if _, err := o.store.Cart.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := o.store.Wishlist.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := o.store.Products.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
