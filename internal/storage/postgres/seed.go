package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tienda/internal/domain/product"
)

// SeedProducts bulk-loads products when the catalog is empty and returns the
// number of rows inserted. A non-empty catalog is left untouched, so the call
// is safe to repeat and to race with other instances.
func SeedProducts(ctx context.Context, pool *pgxpool.Pool, products []product.Product) (int64, error) {
	var inserted int64
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE products IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return errors.Wrap(err, "lock products")
		}

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products)`).Scan(&exists); err != nil {
			return errors.Wrap(err, "check catalog")
		}
		if exists {
			return nil
		}

		rows := make([][]any, len(products))
		for i, p := range products {
			rows[i] = []any{p.Name, p.Price, p.Stock, p.Category}
		}
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"products"},
			[]string{"name", "price", "stock", "category"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return errors.Wrap(err, "copy products")
		}
		inserted = n
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "seed products")
	}
	return inserted, nil
}
