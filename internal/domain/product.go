package domain

import (
	"github.com/shopspring/decimal"
)

// CatalogKind selects one of the two parallel catalogs
type CatalogKind string

const (
	CatalogNew  CatalogKind = "new"
	CatalogUsed CatalogKind = "used"
)

// Valid reports whether k names a known catalog
func (k CatalogKind) Valid() bool {
	return k == CatalogNew || k == CatalogUsed
}

// Discount is either a percentage or a flat amount off the price. A zero
// field is absent.
type Discount struct {
	Percentage decimal.Decimal `json:"percentage,omitzero"`
	Amount     decimal.Decimal `json:"amount,omitzero"`
}

// Product is a new or used product summary as returned by the marketplace
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	StoreID     string          `json:"storeId,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Discount    *Discount       `json:"discount,omitempty"`
	Images      []string        `json:"images,omitempty"`

	// new products
	IsAvailable bool `json:"isAvailable"`
	Stock       int  `json:"stock"`

	// used products
	IsSold bool `json:"isSold"`
	Paid   bool `json:"paid"`
}

// FinalPrice derives the price after discount, rounded to cents.
// A percentage discount takes precedence over an amount.
func (p Product) FinalPrice() decimal.Decimal {
	price := p.Price
	if p.Discount != nil {
		switch {
		case !p.Discount.Percentage.IsZero():
			factor := decimal.NewFromInt(1).Sub(p.Discount.Percentage.Div(decimal.NewFromInt(100)))
			price = price.Mul(factor)
		case !p.Discount.Amount.IsZero():
			price = price.Sub(p.Discount.Amount)
		}
	}
	return price.Round(2)
}

// Purchasable reports whether the product can be added to a cart
func (p Product) Purchasable(kind CatalogKind) bool {
	if kind == CatalogUsed {
		return !p.IsSold
	}
	return p.IsAvailable && p.Stock > 0
}

// Store is a seller store serving a location
type Store struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Pincode  string `json:"pincode,omitempty"`
	City     string `json:"city,omitempty"`
	Phone    string `json:"phone,omitempty"`
	IsActive bool   `json:"isActive"`
}
