package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/notify"
	"storefront/internal/persistence"

	"go.uber.org/zap"
)

// Run persists every collection that changes until ctx is done. Bursts of
// events for one collection are written once.
func (o *Orchestrator) Run(ctx context.Context) {
	changes, cancel := o.broker.SubscribeChanges()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changes.Ready():
			topics := changes.Take()
			if len(topics) == 0 {
				continue
			}
			if err := o.Persist(ctx, topics...); err != nil {
				o.logger.Error("Failed to persist state", zap.Any("topics", topics), zap.Error(err))
			}
		}
	}
}

// Persist writes the collections behind the given topics, or all of them
func (o *Orchestrator) Persist(ctx context.Context, topics ...notify.Topic) error {
	if len(topics) == 0 {
		topics = []notify.Topic{notify.TopicLocation, notify.TopicCatalog, notify.TopicCart, notify.TopicWishlist, notify.TopicProducts}
	}

	var errs []error
	for _, topic := range topics {
		switch topic {
		case notify.TopicLocation:
			errs = append(errs,
				persistence.SaveJSON(ctx, o.persist, persistence.KeyActiveLocation, o.resolver.Active()),
				persistence.SaveJSON(ctx, o.persist, persistence.KeyEditedLocation, o.resolver.Edited()),
			)
		case notify.TopicCatalog:
			errs = append(errs, persistence.SaveJSON(ctx, o.persist, persistence.KeyCatalog, o.cache.Snapshot()))
		case notify.TopicCart:
			errs = append(errs, persistence.SaveJSON(ctx, o.persist, persistence.KeyCart, o.store.Cart.Entries()))
		case notify.TopicWishlist:
			errs = append(errs, persistence.SaveJSON(ctx, o.persist, persistence.KeyWishlist, o.store.Wishlist.Get()))
		case notify.TopicProducts:
			errs = append(errs, persistence.SaveJSON(ctx, o.persist, persistence.KeyProducts, o.store.Products.List()))
		}
	}
	return errors.Join(errs...)
}

// Restore loads persisted state at startup. Every value is re-validated the
// way a fetched one would be; a value that fails is dropped from storage.
func (o *Orchestrator) Restore(ctx context.Context) error {
	var active, edited domain.Location
	if found, err := o.loadFound(ctx, persistence.KeyActiveLocation, &active); err != nil {
		return err
	} else if !found {
		active = domain.Location{}
	}
	if found, err := o.loadFound(ctx, persistence.KeyEditedLocation, &edited); err != nil {
		return err
	} else if !found || edited.IsEmpty() {
		edited = active
	}
	o.resolver.Restore(active, edited)

	var snap domain.Snapshot
	if found, err := o.loadFound(ctx, persistence.KeyCatalog, &snap); err != nil {
		return err
	} else if found {
		o.accept(ctx, persistence.KeyCatalog, o.cache.Restore(snap, o.resolver.Discriminator().Value))
	}

	var entries []domain.CartEntry
	if found, err := o.loadFound(ctx, persistence.KeyCart, &entries); err != nil {
		return err
	} else if found {
		o.accept(ctx, persistence.KeyCart, o.store.Cart.Restore(entries))
	}

	var wishlist domain.Wishlist
	if found, err := o.loadFound(ctx, persistence.KeyWishlist, &wishlist); err != nil {
		return err
	} else if found {
		o.accept(ctx, persistence.KeyWishlist, o.store.Wishlist.Restore(wishlist))
	}

	var products []domain.Product
	if found, err := o.loadFound(ctx, persistence.KeyProducts, &products); err != nil {
		return err
	} else if found {
		o.accept(ctx, persistence.KeyProducts, o.store.Products.Restore(products))
	}

	o.logger.Info("Session state restored",
		zap.String("location", o.resolver.Discriminator().Value),
		zap.String("catalog_stamp", o.cache.Stamp()),
		zap.Int("cart_entries", len(o.store.Cart.Entries())),
	)
	return nil
}

// loadFound decodes key into v. A corrupt document is dropped and reported as
// not found.
func (o *Orchestrator) loadFound(ctx context.Context, key string, v any) (bool, error) {
	err := persistence.LoadJSON(ctx, o.persist, key, v)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, persistence.ErrNotFound):
		return false, nil
	case errors.Is(err, persistence.ErrCorrupt):
		o.accept(ctx, key, err)
		return false, nil
	default:
		return false, fmt.Errorf("failed to restore %s: %w", key, err)
	}
}

// accept drops a persisted value that failed validation
func (o *Orchestrator) accept(ctx context.Context, key string, err error) {
	if err == nil {
		return
	}
	o.logger.Warn("Discarding persisted state", zap.String("key", key), zap.Error(err))
	if delErr := o.persist.Delete(ctx, key); delErr != nil {
		o.logger.Error("Failed to discard persisted state", zap.String("key", key), zap.Error(delErr))
	}
}
