package transport

import (
	"net/http"

	"storefront/internal/catalog"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/mutation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddToCartRequest represents the add to cart payload
type AddToCartRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Kind      string `json:"kind" validate:"omitempty,oneof=new used"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// UpdateCartRequest represents the quantity change payload
type UpdateCartRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// ToggleWishlistRequest represents the wishlist toggle payload
type ToggleWishlistRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

// CartResponse represents the cart with its priced total
type CartResponse struct {
	Entries []domain.CartEntry `json:"entries"`
	Total   string             `json:"total"`
	// Unpriced counts entries whose product is not in the cached catalog
	Unpriced int `json:"unpriced"`
}

// CartHandler handles HTTP requests for the cart and wishlist
type CartHandler struct {
	cart     *mutation.Cart
	wishlist *mutation.Wishlist
	cache    *catalog.Cache
	logger   *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cart *mutation.Cart, wishlist *mutation.Wishlist, cache *catalog.Cache, logger *zap.Logger) *CartHandler {
	return &CartHandler{cart: cart, wishlist: wishlist, cache: cache, logger: logger}
}

// RegisterRoutes registers cart and wishlist routes. Mutating routes go
// through limit.
func (h *CartHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/", h.AddToCart)
			r.Patch("/{id}", h.UpdateQuantity)
			r.Delete("/{id}", h.RemoveFromCart)
		})
	})
	r.Route("/api/wishlist", func(r chi.Router) {
		r.Get("/", h.GetWishlist)
		r.With(limit).Post("/toggle", h.ToggleWishlist)
	})
}

// GetCart returns the cart entries and their total
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.cartResponse())
}

// AddToCart adds a product, merging with an existing entry
func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	kind := domain.CatalogNew
	if req.Kind != "" {
		kind = domain.CatalogKind(req.Kind)
	}

	product, err := h.cache.LookupProduct(r.Context(), kind, req.ProductID)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	entry, err := h.cart.Add(r.Context(), product, kind, req.Quantity)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Product added to cart", zap.String("product_id", entry.ProductID), zap.Int("quantity", entry.Quantity))
	middleware.RespondWithJSON(w, http.StatusCreated, entry)
}

// UpdateQuantity changes the quantity of a cart entry
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	entry, err := h.cart.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, entry)
}

// RemoveFromCart deletes a cart entry
func (h *CartHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, h.cartResponse())
}

// GetWishlist returns the wishlist
func (h *CartHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.wishlist.Get())
}

// ToggleWishlist adds or removes a product
func (h *CartHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	var req ToggleWishlistRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	wishlist, err := h.wishlist.Toggle(r.Context(), req.ProductID)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, wishlist)
}

func (h *CartHandler) cartResponse() CartResponse {
	total, unpriced := h.cart.Total(h.cache.GetProductByID)
	return CartResponse{
		Entries:  h.cart.Entries(),
		Total:    total.StringFixed(2),
		Unpriced: unpriced,
	}
}
