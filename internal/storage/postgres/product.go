package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/internal/domain/query"
)

const (
	productColumns = `id, name, price, stock, category`

	selectProductsSQL = `SELECT ` + productColumns + ` FROM products`

	getProductByIDSQL = selectProductsSQL + ` WHERE id = $1`

	productNameTakenSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE name = $1 AND id <> $2)`

	insertProductSQL = `INSERT INTO products (name, price, stock, category)
		VALUES ($1, $2, $3, $4) RETURNING id`

	updateProductSQL = `UPDATE products SET name = $2, price = $3, stock = $4, category = $5
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var productFields = map[string]string{
	product.FieldCategory: "category",
	product.FieldPrice:    "price",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns one page of matching products ordered by ID.
func (r *ProductRepository) List(ctx context.Context, preds []query.Predicate, page query.Page) ([]product.Product, error) {
	cond, args, err := where(productFields, preds)
	if err != nil {
		return nil, errors.Wrap(err, "build product filter")
	}
	sql, args := paged(selectProductsSQL+cond+` ORDER BY id`, args, page)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Count returns the number of matching products.
func (r *ProductRepository) Count(ctx context.Context, preds []query.Predicate) (int64, error) {
	cond, args, err := where(productFields, preds)
	if err != nil {
		return 0, errors.Wrap(err, "build product filter")
	}

	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products`+cond, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count products")
	}
	return n, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return &p, nil
}

// NameTaken reports whether a product other than excludeID uses name.
func (r *ProductRepository) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var taken bool
	if err := r.pool.QueryRow(ctx, productNameTakenSQL, name, excludeID).Scan(&taken); err != nil {
		return false, errors.Wrap(err, "check product name")
	}
	return taken, nil
}

// Create inserts p and sets its ID.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, insertProductSQL, p.Name, p.Price, p.Stock, p.Category).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return product.ErrNameTaken
		}
		if isOutOfRange(err) {
			return errOutOfRange
		}
		return errors.Wrap(err, "insert product")
	}
	return nil
}

// Update overwrites every writable column of product p.ID.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL, p.ID, p.Name, p.Price, p.Stock, p.Category)
	if err != nil {
		if isUniqueViolation(err) {
			return product.ErrNameTaken
		}
		if isOutOfRange(err) {
			return errOutOfRange
		}
		return errors.Wrapf(err, "update product %d", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes product id.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %d", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Category)
	return p, err
}
