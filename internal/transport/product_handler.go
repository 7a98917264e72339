package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/mutation"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaveProductRequest represents a seller product create or update
type SaveProductRequest struct {
	Name        string           `json:"name" validate:"required,min=1,max=255"`
	Description string           `json:"description" validate:"max=5000"`
	Category    string           `json:"category" validate:"max=100"`
	Price       decimal.Decimal  `json:"price"`
	Discount    *domain.Discount `json:"discount"`
	Images      []string         `json:"images" validate:"max=10,dive,url"`
	Stock       int              `json:"stock" validate:"gte=0"`
	IsAvailable bool             `json:"isAvailable"`
}

func (req SaveProductRequest) product(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Discount:    req.Discount,
		Images:      req.Images,
		Stock:       req.Stock,
		IsAvailable: req.IsAvailable,
	}
}

// ProductHandler handles HTTP requests for the seller's own products
type ProductHandler struct {
	products *mutation.Products
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products *mutation.Products, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

// RegisterRoutes registers owned product routes. Mutating routes go through
// limit.
func (h *ProductHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})
}

// ListProducts returns the owned products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.products.List()
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}
	middleware.RespondWithJSON(w, http.StatusOK, views)
}

// GetProduct returns one owned product
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.products.Get(chi.URLParam(r, "id"))
	if !ok {
		respondWithDomainError(w, h.logger, domain.ErrNotFound)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newProductView(product))
}

// CreateProduct lists a new product for sale
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "", http.StatusCreated)
}

// UpdateProduct changes an existing product
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (h *ProductHandler) save(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req SaveProductRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	product, err := h.products.Save(r.Context(), req.product(id))
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Product saved", zap.String("product_id", product.ID))
	middleware.RespondWithJSON(w, status, newProductView(product))
}

// DeleteProduct removes an owned product
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.products.Remove(r.Context(), id); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id))
	w.WriteHeader(http.StatusNoContent)
}
