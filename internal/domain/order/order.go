package order

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tienda/internal/domain/apperr"
	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/internal/domain/query"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = &apperr.Error{Kind: apperr.ErrNotFound, Message: "Orden no encontrada"}

// Filterable fields understood by query builders over orders.
const (
	FieldCustomer  = "customer"
	FieldCreatedAt = "created_at"
)

// Item is a single line item: a product and the quantity ordered.
type Item struct {
	ProductID int64
	Quantity  int64
}

// Order is a placed order. Its line items are a snapshot taken at placement
// and are never updated afterwards.
type Order struct {
	ID        int64
	CreatedAt time.Time
	Customer  string
	Items     []Item
	// Total is the sum of unit price times quantity at placement time.
	Total decimal.Decimal
}

// Filter narrows an order listing.
type Filter struct {
	// Customer matches case-insensitively anywhere in the customer name.
	Customer string
	From     *time.Time
	To       *time.Time
}

// Validate rejects inverted date ranges.
func (f Filter) Validate() error {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return apperr.Invalid("fecha_hasta debe ser mayor o igual a fecha_desde")
	}
	return nil
}

// Predicates expresses the filter as builder-agnostic conditions.
func (f Filter) Predicates() []query.Predicate {
	return []query.Predicate{
		query.ContainsFold(FieldCustomer, f.Customer),
		query.Range(FieldCreatedAt, f.From, f.To),
	}
}

// Tx is the set of operations available while an order is being placed. All
// of them run in one store transaction.
type Tx interface {
	// LockProducts returns the products among ids that exist, keyed by ID,
	// holding a write lock on each until the transaction ends.
	LockProducts(ctx context.Context, ids []int64) (map[int64]product.Product, error)
	DecrementStock(ctx context.Context, productID, quantity int64) error
	// Insert stores o and assigns its ID.
	Insert(ctx context.Context, o *Order) error
}

// Repository defines persistence operations for orders.
type Repository interface {
	// InTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, preds []query.Predicate, page query.Page) ([]Order, error)
	Count(ctx context.Context, preds []query.Predicate) (int64, error)
}

func cloneItems(items []Item) []Item {
	return slices.Clone(items)
}
