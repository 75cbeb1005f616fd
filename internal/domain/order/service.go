package order

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/tienda/internal/domain/apperr"
	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/internal/domain/query"
)

// ErrMissingFields is returned when the customer or the item list is missing.
var ErrMissingFields = &apperr.Error{Kind: apperr.ErrInvalidRequest, Message: "Faltan campos obligatorios: cliente, items"}

var errTotalTooLarge = apperr.Invalid("El total de la orden excede el máximo permitido")

// InvalidItemError indicates a line item without a product or a positive
// quantity.
type InvalidItemError struct {
	// Index is the zero-based position of the item in the request.
	Index  int
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("Item %d: %s", e.Index, e.Reason)
}

func (e *InvalidItemError) Unwrap() error { return apperr.ErrInvalidRequest }

// ProductNotFoundError indicates a line item references a missing product.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Producto con ID %d no encontrado", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return apperr.ErrNotFound }

// InsufficientStockError indicates a line item asks for more units than the
// product has left.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Stock insuficiente para %s. Disponible: %d, Solicitado: %d",
		e.Name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return apperr.ErrConflict }

// MaxTotal bounds an order total to what the orders table can store.
var MaxTotal = decimal.New(1, 12)

// PlaceOrderRequest holds the input for placing an order. A zero ProductID or
// Quantity means the client did not send it.
type PlaceOrderRequest struct {
	Customer string
	Items    []Item
	// Malformed holds, by index, the reason an item could not be read from
	// the request body. Such items are zero in Items.
	Malformed map[int]string
}

// validate runs the checks that need no store access: the envelope first,
// then every item in input order.
func (r PlaceOrderRequest) validate() error {
	if strings.TrimSpace(r.Customer) == "" || len(r.Items) == 0 {
		return ErrMissingFields
	}
	for i, item := range r.Items {
		if reason, ok := r.Malformed[i]; ok {
			return &InvalidItemError{Index: i, Reason: reason}
		}
		if item.ProductID == 0 || item.Quantity == 0 {
			return &InvalidItemError{Index: i, Reason: "cada item debe tener producto_id y cantidad"}
		}
		if item.Quantity < 0 {
			return &InvalidItemError{Index: i, Reason: "la cantidad debe ser mayor a 0"}
		}
	}
	return nil
}

// productIDs returns the distinct product IDs of the request in ascending
// order, which is also the order rows get locked in.
func (r PlaceOrderRequest) productIDs() []int64 {
	ids := make([]int64, 0, len(r.Items))
	for _, item := range r.Items {
		ids = append(ids, item.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// reserve checks every item against the locked products and computes the
// order total. It does not mutate anything: existence is checked for all
// items before stock is checked for any. Repeated products draw from the
// same remaining stock.
func reserve(items []Item, products map[int64]product.Product) (decimal.Decimal, error) {
	for _, item := range items {
		if _, ok := products[item.ProductID]; !ok {
			return decimal.Zero, &ProductNotFoundError{ProductID: item.ProductID}
		}
	}

	remaining := make(map[int64]int64, len(products))
	for id, p := range products {
		remaining[id] = p.Stock
	}

	total := decimal.Zero
	for _, item := range items {
		p := products[item.ProductID]
		if item.Quantity > remaining[item.ProductID] {
			return decimal.Zero, &InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Available: remaining[item.ProductID],
				Requested: item.Quantity,
			}
		}
		remaining[item.ProductID] -= item.Quantity
		total = total.Add(p.Price.Mul(decimal.NewFromInt(item.Quantity)))
	}
	total = total.Round(2)
	if total.GreaterThanOrEqual(MaxTotal) {
		return decimal.Zero, errTotalTooLarge
	}
	return total, nil
}

// Service encapsulates order placement and lookup.
type Service struct {
	orders Repository
	now    func() time.Time

	tracer   trace.Tracer
	placed   metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates an order Service.
func NewService(orders Repository, tp trace.TracerProvider, mp metric.MeterProvider) (*Service, error) {
	meter := mp.Meter("github.com/xenking/tienda/internal/domain/order")

	placed, err := meter.Int64Counter("tienda.orders.placed",
		metric.WithDescription("Orders committed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "placed counter")
	}
	rejected, err := meter.Int64Counter("tienda.orders.rejected",
		metric.WithDescription("Order placements that did not commit"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}

	return &Service{
		orders:   orders,
		now:      time.Now,
		tracer:   tp.Tracer("github.com/xenking/tienda/internal/domain/order"),
		placed:   placed,
		rejected: rejected,
	}, nil
}

// PlaceOrder validates req, then atomically decrements stock for every item
// and persists the order. On any failure nothing is changed.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.items", len(req.Items))),
	)
	defer func() {
		if rerr != nil {
			s.reject(ctx, rerr)
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if err := req.validate(); err != nil {
		return nil, err
	}

	var placed *Order
	err := s.orders.InTx(ctx, func(ctx context.Context, tx Tx) error {
		products, err := tx.LockProducts(ctx, req.productIDs())
		if err != nil {
			return errors.Wrap(err, "lock products")
		}

		// First pass: validate everything.
		total, err := reserve(req.Items, products)
		if err != nil {
			return err
		}

		// Second pass: apply.
		for _, item := range req.Items {
			if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return errors.Wrapf(err, "decrement stock of product %d", item.ProductID)
			}
		}

		o := &Order{
			CreatedAt: s.now().UTC(),
			Customer:  req.Customer,
			Items:     cloneItems(req.Items),
			Total:     total,
		}
		if err := tx.Insert(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		placed = o
		return nil
	})
	if err != nil {
		if apperr.Kind(err) != nil {
			return nil, err
		}
		return nil, errors.Wrap(err, "place order")
	}

	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("order.id", placed.ID))
	zctx.From(ctx).Info("Order placed",
		zap.Int64("order_id", placed.ID),
		zap.String("customer", placed.Customer),
		zap.Stringer("total", placed.Total),
	)
	return placed, nil
}

func (s *Service) reject(ctx context.Context, err error) {
	reason := "internal"
	switch apperr.Kind(err) {
	case apperr.ErrInvalidRequest:
		reason = "invalid"
	case apperr.ErrNotFound:
		reason = "not_found"
	case apperr.ErrConflict:
		reason = "insufficient_stock"
	}
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Get returns a single order by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// List returns one page of orders matching filter.
func (s *Service) List(ctx context.Context, filter Filter, page query.Page) (*query.Result[Order], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	preds := filter.Predicates()
	total, err := s.orders.Count(ctx, preds)
	if err != nil {
		return nil, errors.Wrap(err, "count orders")
	}
	if err := page.Check(total); err != nil {
		return nil, err
	}

	items, err := s.orders.List(ctx, preds, page)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return query.NewResult(items, page, total), nil
}
