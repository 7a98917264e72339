package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/notify"

	"go.uber.org/zap"
)

const (
	DefaultDeviceTimeout = 10 * time.Second
	DefaultMaxFixAge     = 5 * time.Minute
)

// Source tells where a resolved location came from
type Source string

const (
	SourceDevice Source = "device"
	SourceIP     Source = "ip"
	SourceNone   Source = "none"
)

// ReverseGeocoder resolves coordinates to raw address fields
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, coords domain.Coordinates) (domain.RawAddress, error)
}

// IPLocator looks up the location of the caller's public IP
type IPLocator interface {
	Locate(ctx context.Context) (IPInfo, error)
}

// Options tune device resolution
type Options struct {
	DeviceTimeout time.Duration
	MaxFixAge     time.Duration
}

// Resolver owns the active location and the shopper's draft edit of it
type Resolver struct {
	geocoder ReverseGeocoder
	ip       IPLocator
	opts     Options
	broker   *notify.Broker
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	active domain.Location
	edited domain.Location
}

// NewResolver creates a new Resolver
func NewResolver(geocoder ReverseGeocoder, ip IPLocator, opts Options, broker *notify.Broker, logger *zap.Logger) *Resolver {
	if opts.DeviceTimeout <= 0 || opts.DeviceTimeout > DefaultDeviceTimeout {
		opts.DeviceTimeout = DefaultDeviceTimeout
	}
	if opts.MaxFixAge <= 0 {
		opts.MaxFixAge = DefaultMaxFixAge
	}
	return &Resolver{
		geocoder: geocoder,
		ip:       ip,
		opts:     opts,
		broker:   broker,
		logger:   logger,
		now:      time.Now,
	}
}

// ResolveViaDevice acquires a device fix within the device timeout, accepting
// fixes up to the maximum age, and reverse geocodes it.
func (r *Resolver) ResolveViaDevice(ctx context.Context, geo Geolocator) (domain.Location, error) {
	if geo == nil {
		return domain.Location{}, &domain.GeolocationError{Kind: domain.GeoUnsupported}
	}

	fixCtx, cancel := context.WithTimeout(ctx, r.opts.DeviceTimeout)
	defer cancel()

	pos, err := geo.CurrentPosition(fixCtx, PositionOptions{
		Timeout:    r.opts.DeviceTimeout,
		MaximumAge: r.opts.MaxFixAge,
	})
	if err != nil {
		var geoErr *domain.GeolocationError
		if errors.As(err, &geoErr) {
			return domain.Location{}, geoErr
		}
		if errors.Is(fixCtx.Err(), context.DeadlineExceeded) {
			return domain.Location{}, &domain.GeolocationError{Kind: domain.GeoTimeout, Err: err}
		}
		return domain.Location{}, &domain.GeolocationError{Kind: domain.GeoUnsupported, Err: err}
	}
	if !pos.Timestamp.IsZero() && r.now().Sub(pos.Timestamp) > r.opts.MaxFixAge {
		return domain.Location{}, &domain.GeolocationError{
			Kind: domain.GeoTimeout,
			Err:  fmt.Errorf("fix is %s old", r.now().Sub(pos.Timestamp).Round(time.Second)),
		}
	}

	raw, err := r.geocoder.ReverseGeocode(ctx, pos.Coords)
	if err != nil {
		return domain.Location{}, fmt.Errorf("failed to reverse geocode: %w", err)
	}
	return Normalize(raw), nil
}

// ResolveViaIP is best effort: a failed lookup yields an empty location
func (r *Resolver) ResolveViaIP(ctx context.Context) domain.Location {
	if r.ip == nil {
		return domain.Location{}
	}
	info, err := r.ip.Locate(ctx)
	if err != nil {
		r.logger.Warn("IP geolocation failed", zap.Error(err))
		return domain.Location{}
	}
	return info.Location()
}

// Resolve runs the device then IP chain and activates the result when it is
// not empty. It reports whether the cache key changed.
func (r *Resolver) Resolve(ctx context.Context, geo Geolocator) (domain.Location, Source, bool) {
	loc, err := r.ResolveViaDevice(ctx, geo)
	source := SourceDevice
	switch {
	case err != nil:
		r.logger.Warn("Device location unavailable, falling back to IP", zap.Error(err))
		fallthrough
	case loc.IsEmpty():
		loc = r.ResolveViaIP(ctx)
		source = SourceIP
	}

	if loc.IsEmpty() {
		r.logger.Info("Location could not be resolved")
		return r.Active(), SourceNone, false
	}

	r.logger.Info("Location resolved",
		zap.String("source", string(source)),
		zap.String("discriminator", loc.Discriminator().Value),
	)
	return loc, source, r.SetActive(loc)
}

// SetActive replaces the active location and resets the draft to it. It
// reports whether the discriminator changed.
func (r *Resolver) SetActive(loc domain.Location) bool {
	loc = Clean(loc)

	r.mu.Lock()
	changed := !r.active.SameKey(loc)
	r.active = loc
	r.edited = loc
	r.mu.Unlock()

	r.broker.Publish(notify.TopicLocation)
	return changed
}

// SetEdited applies a partial edit to the draft without touching the active location
func (r *Resolver) SetEdited(patch domain.LocationPatch) domain.Location {
	r.mu.Lock()
	r.edited = Clean(r.edited.Merge(patch))
	edited := r.edited
	r.mu.Unlock()

	r.broker.Publish(notify.TopicLocation)
	return edited
}

// CommitEdited promotes the draft to the active location
func (r *Resolver) CommitEdited() (domain.Location, bool) {
	edited := r.Edited()
	return edited, r.SetActive(edited)
}

// Restore installs persisted state without publishing
func (r *Resolver) Restore(active, edited domain.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = Clean(active)
	r.edited = Clean(edited)
}

// Reset clears both locations
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.active = domain.Location{}
	r.edited = domain.Location{}
	r.mu.Unlock()

	r.broker.Publish(notify.TopicLocation)
}

// Active returns the active location
func (r *Resolver) Active() domain.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Edited returns the draft location
func (r *Resolver) Edited() domain.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.edited
}

// Discriminator returns the cache key of the active location
func (r *Resolver) Discriminator() domain.Discriminator {
	return r.Active().Discriminator()
}
