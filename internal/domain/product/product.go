package product

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/tienda/internal/domain/apperr"
	"github.com/xenking/tienda/internal/domain/query"
)

// Storage errors reported by Repository implementations.
var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = &apperr.Error{Kind: apperr.ErrNotFound, Message: "Producto no encontrado"}
	// ErrNameTaken is returned when a write would duplicate another product's name.
	ErrNameTaken = &apperr.Error{Kind: apperr.ErrConflict, Message: "Ya existe un producto con este nombre"}
)

// MaxPrice is the exclusive upper bound of a price, which is stored with two
// decimal places and at most ten integer digits.
var MaxPrice = decimal.New(1, 10)

// Filterable fields understood by query builders over the catalog.
const (
	FieldCategory = "category"
	FieldPrice    = "price"
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Stock    int64
	Category string
}

// Input carries the writable product fields. Price and Stock keep track of
// whether the client sent them at all.
type Input struct {
	Name     string
	Price    decimal.NullDecimal
	Stock    *int64
	Category string
}

// Validate applies the field rules shared by create and update. Name
// uniqueness needs the store and is checked separately.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Category) == "" {
		return apperr.Invalid("Faltan campos obligatorios: nombre, categoria")
	}
	if !in.Price.Valid || !in.Price.Decimal.IsPositive() {
		return apperr.Invalid("El precio debe ser mayor a 0")
	}
	if price := in.Price.Decimal; !price.Equal(price.Round(2)) {
		return apperr.Invalid("El precio debe tener como máximo 2 decimales")
	}
	if in.Price.Decimal.GreaterThanOrEqual(MaxPrice) {
		return apperr.Invalid("El precio debe ser menor a %s", MaxPrice.String())
	}
	if in.Stock == nil || *in.Stock < 0 {
		return apperr.Invalid("El stock debe ser mayor o igual a 0")
	}
	return nil
}

// Product returns the product described by in. It must only be called after
// Validate succeeded.
func (in Input) Product() Product {
	return Product{
		Name:     in.Name,
		Price:    in.Price.Decimal,
		Stock:    *in.Stock,
		Category: in.Category,
	}
}

// Filter narrows a catalog listing.
type Filter struct {
	// Category matches case-insensitively anywhere in the category name.
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// Validate rejects inverted price ranges.
func (f Filter) Validate() error {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MaxPrice.LessThan(*f.MinPrice) {
		return apperr.Invalid("precio_max debe ser mayor o igual a precio_min")
	}
	return nil
}

// Predicates expresses the filter as builder-agnostic conditions.
func (f Filter) Predicates() []query.Predicate {
	return []query.Predicate{
		query.ContainsFold(FieldCategory, f.Category),
		query.Range(FieldPrice, f.MinPrice, f.MaxPrice),
	}
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, preds []query.Predicate, page query.Page) ([]Product, error)
	Count(ctx context.Context, preds []query.Predicate) (int64, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	// NameTaken reports whether a product other than excludeID uses name.
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
