package transport

import (
	"net/http"

	"storefront/internal/catalog"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/orchestrator"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CategoryResponse represents one category listing
type CategoryResponse struct {
	Kind     domain.CatalogKind `json:"kind"`
	Category string             `json:"category"`
	Stamp    string             `json:"stamp"`
	Products []ProductView      `json:"products"`
}

// ProductView is a product with its derived final price
type ProductView struct {
	domain.Product
	FinalPrice string `json:"finalPrice"`
}

func newProductView(p domain.Product) ProductView {
	return ProductView{Product: p, FinalPrice: p.FinalPrice().StringFixed(2)}
}

// CatalogHandler handles HTTP requests for the cached catalog
type CatalogHandler struct {
	sync   *orchestrator.Orchestrator
	cache  *catalog.Cache
	logger *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(sync *orchestrator.Orchestrator, cache *catalog.Cache, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{sync: sync, cache: cache, logger: logger}
}

// RegisterRoutes registers all catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/catalog/refresh", h.Refresh)
	r.Get("/api/catalog", h.Ensure)
	r.Get("/api/catalog/{kind}/categories", h.Categories)
	r.Get("/api/catalog/{kind}/categories/{name}", h.Category)
	r.Get("/api/catalog/{kind}/products/{id}", h.Product)
	r.Get("/api/stores", h.Stores)
}

// Ensure returns the catalog for the active location, fetching it if the
// cache belongs to another one
func (h *CatalogHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.Refresh(r.Context(), false)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Refresh re-fetches the catalog for the active location
func (h *CatalogHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.Refresh(r.Context(), true)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Categories lists category names in server order
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"kind":       kind,
		"stamp":      h.cache.Stamp(),
		"categories": h.cache.Categories(kind),
	})
}

// Category lists the products of one category
func (h *CatalogHandler) Category(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	name := chi.URLParam(r, "name")

	products := h.cache.GetCategory(kind, name)
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}

	middleware.RespondWithJSON(w, http.StatusOK, CategoryResponse{
		Kind:     kind,
		Category: name,
		Stamp:    h.cache.Stamp(),
		Products: views,
	})
}

// Product returns one product, from the cache when present
func (h *CatalogHandler) Product(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	product, err := h.cache.LookupProduct(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newProductView(product))
}

// Stores lists the stores serving the cached location
func (h *CatalogHandler) Stores(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"stamp":  h.cache.Stamp(),
		"stores": h.cache.Stores(),
	})
}
