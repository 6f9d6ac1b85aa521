package domain

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRODUCT DOMAIN TYPES
// =============================================================================

// Product is a catalog entry. Stock is tracked on the product itself, or per
// variant when the product is sold in sizes.
type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Image       string          `json:"image,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Variants    []Variant       `json:"variants,omitempty"`
}

// Variant is a purchasable size of a product with its own price and stock.
type Variant struct {
	Size  string          `json:"size"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// Variant returns the variant with the given size label.
func (p *Product) Variant(size string) (*Variant, bool) {
	for i := range p.Variants {
		if strings.EqualFold(p.Variants[i].Size, size) {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// PriceFor returns the unit price for the product or one of its sizes.
func (p *Product) PriceFor(size string) decimal.Decimal {
	if size != "" {
		if v, ok := p.Variant(size); ok {
			return v.Price
		}
	}
	return p.Price
}

// StockFor returns the quantity on hand for the product or one of its sizes.
func (p *Product) StockFor(size string) int {
	if size != "" {
		if v, ok := p.Variant(size); ok {
			return v.Stock
		}
	}
	return p.Stock
}

// DisplayName is the name shown on carts and orders, "Name (Size)" for variants.
func (p *Product) DisplayName(size string) string {
	if size == "" {
		return p.Name
	}
	return p.Name + " (" + size + ")"
}

// SplitVariantName splits a cart display name of the form "Name (Size)".
// Names without a trailing size are returned unchanged with an empty size.
func SplitVariantName(name string) (base, size string) {
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(name, ")") {
		return name, ""
	}
	open := strings.LastIndex(name, " (")
	if open <= 0 {
		return name, ""
	}
	return name[:open], name[open+2 : len(name)-1]
}

// StockAdjustment reports the outcome of a clamped stock decrement.
type StockAdjustment struct {
	ProductID int
	Size      string
	Before    int
	After     int
	// Shortfall is the part of the requested quantity that could not be
	// taken because stock reached zero.
	Shortfall int
}

// Oversold reports whether the decrement was clamped.
func (a StockAdjustment) Oversold() bool {
	return a.Shortfall > 0
}

// ClampDecrement applies a decrement of qty to stock without going below zero.
func ClampDecrement(stock, qty int) (after, shortfall int) {
	if qty <= stock {
		return stock - qty, 0
	}
	if stock < 0 {
		stock = 0
	}
	return 0, qty - stock
}

// ProductUpdate carries the admin-editable fields of a product.
// Nil fields are left unchanged.
type ProductUpdate struct {
	Price    *decimal.Decimal
	Stock    *int
	Variants []Variant
}

// ProductStore persists products.
type ProductStore interface {
	// ListProducts returns every product ordered by id.
	ListProducts(ctx context.Context) ([]Product, error)

	// GetProduct returns the product with the given id or ErrProductNotFound.
	GetProduct(ctx context.Context, id int) (*Product, error)

	// FindProductByName returns the product whose name matches, ignoring case.
	FindProductByName(ctx context.Context, name string) (*Product, error)

	// UpsertProduct inserts or replaces a product by id.
	UpsertProduct(ctx context.Context, p *Product) error

	// UpdateProduct applies an admin edit and returns the stored result.
	UpdateProduct(ctx context.Context, id int, u ProductUpdate) (*Product, error)

	// DecrementStock atomically lowers stock for a product, or for one of
	// its sizes when size is non-empty, clamping at zero.
	DecrementStock(ctx context.Context, id int, size string, qty int) (StockAdjustment, error)
}

// Product-related domain errors.
var (
	ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}
	ErrVariantNotFound = &Error{Code: ENOTFOUND, Message: "Product size not found"}
	ErrInvalidPrice    = &Error{Code: EINVALID, Message: "Price must not be negative"}
	ErrInvalidStock    = &Error{Code: EINVALID, Message: "Stock must not be negative"}
)

// Validate checks product invariants.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("product.validate", "name", "Product name is required")
	}
	if p.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if p.Stock < 0 {
		return ErrInvalidStock
	}
	for _, v := range p.Variants {
		if v.Price.IsNegative() {
			return ErrInvalidPrice
		}
		if v.Stock < 0 {
			return ErrInvalidStock
		}
	}
	return nil
}

// Apply merges an update into the product.
func (u ProductUpdate) Apply(p *Product) error {
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Variants != nil {
		p.Variants = u.Variants
	}
	return p.Validate()
}
