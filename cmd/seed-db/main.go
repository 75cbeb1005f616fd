// Command seed-db applies migrations and loads a product catalog into an
// empty database.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/tienda/internal/catalogfile"
	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "catalog JSON file, optionally .gz (default: embedded catalog)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		return run(ctx, lg, databaseURL, productsFile)
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile string) error {
	inputs, err := readCatalog(lg, productsFile)
	if err != nil {
		return err
	}
	products, err := catalogfile.Products(inputs)
	if err != nil {
		return errors.Wrap(err, "validate catalog")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	n, err := postgres.SeedProducts(ctx, pool, products)
	if err != nil {
		return err
	}
	if n == 0 {
		lg.Info("Catalog already populated, nothing to do")
		return nil
	}
	lg.Info("Seed completed", zap.Int64("products", n))
	return nil
}

func readCatalog(lg *zap.Logger, path string) ([]product.Input, error) {
	if path == "" {
		lg.Info("Reading embedded catalog")
		inputs, err := catalogfile.Default()
		return inputs, errors.Wrap(err, "embedded catalog")
	}
	lg.Info("Reading catalog file", zap.String("path", path))
	return catalogfile.Open(path)
}
