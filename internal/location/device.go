package location

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// PositionOptions bound a device position request
type PositionOptions struct {
	Timeout    time.Duration
	MaximumAge time.Duration
}

// Position is a device fix and the time it was taken
type Position struct {
	Coords    domain.Coordinates
	Timestamp time.Time
}

// Geolocator is the device geolocation capability. Implementations return a
// *domain.GeolocationError for permission, timeout and support failures and
// must honor ctx cancellation.
type Geolocator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error)
}

// ReportedFix is a Geolocator backed by a fix the client device already
// acquired and sent along, or by the error it reported.
type ReportedFix struct {
	Position Position
	Err      error
}

// CurrentPosition returns the reported fix or error
func (f ReportedFix) CurrentPosition(ctx context.Context, _ PositionOptions) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, &domain.GeolocationError{Kind: domain.GeoTimeout, Err: err}
	}
	if f.Err != nil {
		return Position{}, f.Err
	}
	return f.Position, nil
}
