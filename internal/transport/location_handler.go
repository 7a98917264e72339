package transport

import (
	"net/http"
	"time"

	"storefront/internal/domain"
	"storefront/internal/location"
	"storefront/internal/middleware"
	"storefront/internal/orchestrator"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SetLocationRequest represents a manually entered location
type SetLocationRequest struct {
	Pincode  string `json:"pincode" validate:"required_without_all=City Town Locality,max=20"`
	City     string `json:"city" validate:"max=100"`
	Town     string `json:"town" validate:"max=100"`
	Locality string `json:"locality" validate:"max=100"`
	Country  string `json:"country" validate:"max=100"`
}

// EditLocationRequest represents a partial draft edit
type EditLocationRequest struct {
	Pincode  *string `json:"pincode" validate:"omitempty,max=20"`
	City     *string `json:"city" validate:"omitempty,max=100"`
	Town     *string `json:"town" validate:"omitempty,max=100"`
	Locality *string `json:"locality" validate:"omitempty,max=100"`
	Country  *string `json:"country" validate:"omitempty,max=100"`
}

// ResolveRequest carries the device fix the client acquired, or the error it got
type ResolveRequest struct {
	Latitude  *float64   `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64   `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Timestamp *time.Time `json:"timestamp"`
	Error     string     `json:"error" validate:"omitempty,oneof=permission_denied timeout unsupported"`
}

// LocationState represents the active and draft locations
type LocationState struct {
	Active        domain.Location      `json:"active"`
	Edited        domain.Location      `json:"edited"`
	Discriminator domain.Discriminator `json:"discriminator"`
	CatalogStamp  string               `json:"catalogStamp"`
}

// LocationHandler handles HTTP requests for the shopper's location
type LocationHandler struct {
	sync     *orchestrator.Orchestrator
	resolver *location.Resolver
	stamp    func() string
	logger   *zap.Logger
}

// NewLocationHandler creates a new LocationHandler
func NewLocationHandler(sync *orchestrator.Orchestrator, resolver *location.Resolver, stamp func() string, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{sync: sync, resolver: resolver, stamp: stamp, logger: logger}
}

// RegisterRoutes registers all location routes
func (h *LocationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/location", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Set)
		r.Patch("/edited", h.Edit)
		r.Post("/edited/commit", h.Commit)
		r.Post("/resolve", h.Resolve)
	})
}

// Get returns the active and draft locations
func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.state())
}

// Set activates a manually entered location
func (h *LocationHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req SetLocationRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	result, err := h.sync.SetLocation(r.Context(), domain.Location{
		Pincode:  req.Pincode,
		City:     req.City,
		Town:     req.Town,
		Locality: req.Locality,
		Country:  req.Country,
	})
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Location set", zap.String("key", result.Key.Value), zap.Bool("changed", result.Changed))
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Edit applies a partial change to the draft location
func (h *LocationHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req EditLocationRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	h.resolver.SetEdited(domain.LocationPatch{
		Pincode:  req.Pincode,
		City:     req.City,
		Town:     req.Town,
		Locality: req.Locality,
		Country:  req.Country,
	})
	middleware.RespondWithJSON(w, http.StatusOK, h.state())
}

// Commit promotes the draft to the active location
func (h *LocationHandler) Commit(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.CommitEdited(r.Context())
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Resolve runs device then IP resolution
func (h *LocationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeOptional(w, r, h.logger, &req) {
		return
	}

	result, err := h.sync.Resolve(r.Context(), req.geolocator())
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

func (h *LocationHandler) state() LocationState {
	active := h.resolver.Active()
	return LocationState{
		Active:        active,
		Edited:        h.resolver.Edited(),
		Discriminator: active.Discriminator(),
		CatalogStamp:  h.stamp(),
	}
}

// geolocator turns the request into the device capability. A request with
// neither coordinates nor an error means the device has no geolocation.
func (req ResolveRequest) geolocator() location.Geolocator {
	if req.Error != "" {
		return location.ReportedFix{Err: &domain.GeolocationError{Kind: domain.GeolocationKind(req.Error)}}
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil
	}
	fix := location.Position{Coords: domain.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}}
	if req.Timestamp != nil {
		fix.Timestamp = *req.Timestamp
	}
	return location.ReportedFix{Position: fix}
}
