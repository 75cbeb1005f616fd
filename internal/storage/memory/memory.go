// Package memory implements the catalog and order repositories in process
// memory. A single mutex serializes every operation, which gives InTx the
// same all-or-nothing behaviour as a database transaction.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tienda/internal/domain/order"
	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/internal/domain/query"
)

var errStockUnderflow = errors.New("stock would become negative")

// Store holds products and orders.
type Store struct {
	mu            sync.Mutex
	products      map[int64]product.Product
	orders        map[int64]order.Order
	nextProductID int64
	nextOrderID   int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		products: make(map[int64]product.Product),
		orders:   make(map[int64]order.Order),
	}
}

// Products returns the catalog repository view of the store.
func (s *Store) Products() *ProductRepository {
	return &ProductRepository{s: s}
}

// Orders returns the order repository view of the store.
func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{s: s}
}

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ order.Repository   = (*OrderRepository)(nil)
)

// ProductRepository implements product.Repository.
type ProductRepository struct {
	s *Store
}

func (r *ProductRepository) filtered(preds []query.Predicate) []product.Product {
	var m matcher
	query.Apply(&m, preds...)

	out := make([]product.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		fields := map[string]any{
			product.FieldCategory: p.Category,
			product.FieldPrice:    p.Price,
		}
		if m.match(fields) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b product.Product) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// List returns one page of matching products ordered by ID.
func (r *ProductRepository) List(_ context.Context, preds []query.Predicate, page query.Page) ([]product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return paginate(r.filtered(preds), page), nil
}

// Count returns the number of matching products.
func (r *ProductRepository) Count(_ context.Context, preds []query.Predicate) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filtered(preds))), nil
}

// GetByID returns a product or product.ErrNotFound.
func (r *ProductRepository) GetByID(_ context.Context, id int64) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// NameTaken reports whether a product other than excludeID uses name.
func (r *ProductRepository) NameTaken(_ context.Context, name string, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.nameTaken(name, excludeID), nil
}

// Create stores p and assigns its ID.
func (r *ProductRepository) Create(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.nameTaken(p.Name, 0) {
		return product.ErrNameTaken
	}
	r.s.nextProductID++
	p.ID = r.s.nextProductID
	r.s.products[p.ID] = *p
	return nil
}

// Update overwrites product p.ID.
func (r *ProductRepository) Update(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	if r.s.nameTaken(p.Name, p.ID) {
		return product.ErrNameTaken
	}
	r.s.products[p.ID] = *p
	return nil
}

// Delete removes product id.
func (r *ProductRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

func (s *Store) nameTaken(name string, excludeID int64) bool {
	for id, p := range s.products {
		if id != excludeID && p.Name == name {
			return true
		}
	}
	return false
}

// OrderRepository implements order.Repository.
type OrderRepository struct {
	s *Store
}

// InTx runs fn with exclusive access to the store. Stock changes and inserted
// orders are staged and only applied when fn succeeds.
func (r *OrderRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx := &memTx{s: r.s, stock: make(map[int64]int64)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, stock := range tx.stock {
		p := r.s.products[id]
		p.Stock = stock
		r.s.products[id] = p
	}
	for _, o := range tx.orders {
		r.s.orders[o.ID] = o
	}
	r.s.nextOrderID = tx.nextOrderID(0)
	return nil
}

// GetByID returns an order or order.ErrNotFound.
func (r *OrderRepository) GetByID(_ context.Context, id int64) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (r *OrderRepository) filtered(preds []query.Predicate) []order.Order {
	var m matcher
	query.Apply(&m, preds...)

	out := make([]order.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		fields := map[string]any{
			order.FieldCustomer:  o.Customer,
			order.FieldCreatedAt: o.CreatedAt,
		}
		if m.match(fields) {
			o.Items = slices.Clone(o.Items)
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b order.Order) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// List returns one page of matching orders ordered by ID.
func (r *OrderRepository) List(_ context.Context, preds []query.Predicate, page query.Page) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return paginate(r.filtered(preds), page), nil
}

// Count returns the number of matching orders.
func (r *OrderRepository) Count(_ context.Context, preds []query.Predicate) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filtered(preds))), nil
}

// memTx stages writes made during InTx. The store mutex is held by InTx for
// the whole lifetime of a memTx.
type memTx struct {
	s      *Store
	stock  map[int64]int64
	orders []order.Order
}

func (t *memTx) LockProducts(_ context.Context, ids []int64) (map[int64]product.Product, error) {
	out := make(map[int64]product.Product, len(ids))
	for _, id := range ids {
		p, ok := t.s.products[id]
		if !ok {
			continue
		}
		if stock, staged := t.stock[id]; staged {
			p.Stock = stock
		}
		out[id] = p
	}
	return out, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID, quantity int64) error {
	p, ok := t.s.products[productID]
	if !ok {
		return product.ErrNotFound
	}
	stock, staged := t.stock[productID]
	if !staged {
		stock = p.Stock
	}
	if stock < quantity {
		return errStockUnderflow
	}
	t.stock[productID] = stock - quantity
	return nil
}

func (t *memTx) Insert(_ context.Context, o *order.Order) error {
	o.ID = t.nextOrderID(1)
	stored := *o
	stored.Items = slices.Clone(o.Items)
	t.orders = append(t.orders, stored)
	return nil
}

// nextOrderID returns the ID after the last staged order plus extra.
func (t *memTx) nextOrderID(extra int64) int64 {
	return t.s.nextOrderID + int64(len(t.orders)) + extra
}

// matcher implements query.Builder by collecting conditions and evaluating
// them against field values.
type matcher struct {
	conds []query.Cond
}

func (m *matcher) Where(c query.Cond) {
	m.conds = append(m.conds, c)
}

func (m *matcher) match(fields map[string]any) bool {
	for _, c := range m.conds {
		if !matchCond(c, fields[c.Field]) {
			return false
		}
	}
	return true
}

func matchCond(c query.Cond, v any) bool {
	switch c.Op {
	case query.OpContainsFold:
		s, _ := v.(string)
		sub, _ := c.Value.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	case query.OpGTE:
		return compare(v, c.Value) >= 0
	case query.OpLTE:
		return compare(v, c.Value) <= 0
	default:
		return false
	}
}

func compare(a, b any) int {
	switch a := a.(type) {
	case decimal.Decimal:
		if b, ok := b.(decimal.Decimal); ok {
			return a.Cmp(b)
		}
	case time.Time:
		if b, ok := b.(time.Time); ok {
			return a.Compare(b)
		}
	}
	return 0
}

func paginate[T any](items []T, page query.Page) []T {
	start := min(page.Offset(), len(items))
	end := min(start+page.Size, len(items))
	return items[start:end]
}
