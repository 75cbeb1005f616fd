package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tienda/internal/domain/order"
	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/internal/domain/query"
)

const (
	orderColumns = `id, created_at, customer, items, total`

	selectOrdersSQL = `SELECT ` + orderColumns + ` FROM orders`

	getOrderByIDSQL = selectOrdersSQL + ` WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (created_at, customer, items, total)
		VALUES ($1, $2, $3, $4) RETURNING id`

	// Rows are locked in ID order so concurrent orders over overlapping
	// products cannot deadlock.
	lockProductsSQL = selectProductsSQL + ` WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	decrementStockSQL = `UPDATE products SET stock = stock - $2 WHERE id = $1`
)

var orderFields = map[string]string{
	order.FieldCustomer:  "customer",
	order.FieldCreatedAt: "created_at",
}

// itemRecord is the JSONB representation of a line item.
type itemRecord struct {
	ProductID int64 `json:"producto_id"`
	Quantity  int64 `json:"cantidad"`
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// InTx runs fn in a read-committed transaction. Product rows returned by
// Tx.LockProducts stay locked until fn returns.
func (r *OrderRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	return &o, nil
}

// List returns one page of matching orders ordered by ID.
func (r *OrderRepository) List(ctx context.Context, preds []query.Predicate, page query.Page) ([]order.Order, error) {
	cond, args, err := where(orderFields, preds)
	if err != nil {
		return nil, errors.Wrap(err, "build order filter")
	}
	sql, args := paged(selectOrdersSQL+cond+` ORDER BY id`, args, page)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Count returns the number of matching orders.
func (r *OrderRepository) Count(ctx context.Context, preds []query.Predicate) (int64, error) {
	cond, args, err := where(orderFields, preds)
	if err != nil {
		return 0, errors.Wrap(err, "build order filter")
	}

	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+cond, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count orders")
	}
	return n, nil
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) LockProducts(ctx context.Context, ids []int64) (map[int64]product.Product, error) {
	rows, err := t.tx.Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "lock products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "lock products")
	}

	out := make(map[int64]product.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (t *orderTx) DecrementStock(ctx context.Context, productID, quantity int64) error {
	tag, err := t.tx.Exec(ctx, decrementStockSQL, productID, quantity)
	if err != nil {
		return errors.Wrap(err, "decrement stock")
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (t *orderTx) Insert(ctx context.Context, o *order.Order) error {
	items := make([]itemRecord, len(o.Items))
	for i, item := range o.Items {
		items[i] = itemRecord{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	err := t.tx.QueryRow(ctx, insertOrderSQL, o.CreatedAt, o.Customer, items, o.Total).Scan(&o.ID)
	if err != nil {
		if isOutOfRange(err) {
			return errOutOfRange
		}
		return errors.Wrap(err, "insert order")
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o     order.Order
		items []itemRecord
		total decimal.Decimal
	)
	if err := row.Scan(&o.ID, &o.CreatedAt, &o.Customer, &items, &total); err != nil {
		return o, err
	}

	o.CreatedAt = o.CreatedAt.UTC()
	o.Total = total
	o.Items = make([]order.Item, len(items))
	for i, item := range items {
		o.Items[i] = order.Item{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return o, nil
}
