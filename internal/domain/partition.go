package domain

import (
	"bytes"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MaxProductsPerCategory bounds a single category listing
const MaxProductsPerCategory = 10

// Partition maps category names to ordered product lists, preserving the
// order in which categories were first seen.
type Partition struct {
	items *orderedmap.OrderedMap[string, []Product]
}

// NewPartition creates an empty partition
func NewPartition() *Partition {
	return &Partition{items: orderedmap.New[string, []Product]()}
}

// Set stores the products of a category, appending the category to the order
// the first time it is seen.
func (p *Partition) Set(category string, products []Product) {
	if p.items == nil {
		p.items = orderedmap.New[string, []Product]()
	}
	if products == nil {
		products = []Product{}
	}
	p.items.Set(category, products)
}

// Get returns a copy of the products of a category, or nil
func (p *Partition) Get(category string) []Product {
	if p == nil || p.items == nil {
		return nil
	}
	products, ok := p.items.Get(category)
	if !ok {
		return nil
	}
	out := make([]Product, len(products))
	copy(out, products)
	return out
}

// Categories returns category names in insertion order
func (p *Partition) Categories() []string {
	if p == nil || p.items == nil {
		return nil
	}
	out := make([]string, 0, p.items.Len())
	for pair := p.items.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Find looks a product up by id across all categories
func (p *Partition) Find(id string) (Product, bool) {
	if p == nil || p.items == nil {
		return Product{}, false
	}
	for pair := p.items.Oldest(); pair != nil; pair = pair.Next() {
		for _, product := range pair.Value {
			if product.ID == id {
				return product, true
			}
		}
	}
	return Product{}, false
}

// Len returns the number of categories
func (p *Partition) Len() int {
	if p == nil || p.items == nil {
		return 0
	}
	return p.items.Len()
}

// Validate checks the per-category size bound and that every product has an id
func (p *Partition) Validate() error {
	if p == nil || p.items == nil {
		return nil
	}
	for pair := p.items.Oldest(); pair != nil; pair = pair.Next() {
		category, products := pair.Key, pair.Value
		if len(products) > MaxProductsPerCategory {
			return &ValidationError{Field: "category." + category, Reason: fmt.Sprintf("holds %d products, limit is %d", len(products), MaxProductsPerCategory)}
		}
		for _, product := range products {
			if product.ID == "" {
				return &ValidationError{Field: "category." + category, Reason: "product without id"}
			}
		}
	}
	return nil
}

// MarshalJSON encodes the partition as a JSON object in category order
func (p *Partition) MarshalJSON() ([]byte, error) {
	if p == nil || p.items == nil {
		return []byte("{}"), nil
	}
	return p.items.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object keeping the key order of the document.
// null decodes to an empty partition.
func (p *Partition) UnmarshalJSON(data []byte) error {
	items := orderedmap.New[string, []Product]()
	if !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		if err := items.UnmarshalJSON(data); err != nil {
			return fmt.Errorf("failed to decode partition: %w", err)
		}
	}
	p.items = items
	return nil
}

// Snapshot is the full catalog state for one location value. All three
// collections always carry the same stamp.
type Snapshot struct {
	Stamp       string     `json:"stamp"`
	NewCatalog  *Partition `json:"newCatalog"`
	UsedCatalog *Partition `json:"usedCatalog"`
	Stores      []Store    `json:"stores"`
}

// Partition returns the partition for a catalog kind
func (s Snapshot) Partition(kind CatalogKind) *Partition {
	if kind == CatalogUsed {
		return s.UsedCatalog
	}
	return s.NewCatalog
}

// EmptySnapshot returns a snapshot with no stamp and empty collections
func EmptySnapshot() Snapshot {
	return Snapshot{
		NewCatalog:  NewPartition(),
		UsedCatalog: NewPartition(),
		Stores:      []Store{},
	}
}
