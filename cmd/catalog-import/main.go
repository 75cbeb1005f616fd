// Command catalog-import creates products through the public API from one or
// more catalog files (.json or .json.gz). Products whose name already exists
// are reported as skipped.
package main

import (
	"context"
	"flag"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tienda/internal/catalogfile"
	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/pkg/client"
)

type stats struct {
	created atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

func main() {
	var (
		apiURL  string
		workers int
		timeout time.Duration
	)
	flag.StringVar(&apiURL, "api", "http://localhost:8080", "API base URL")
	flag.IntVar(&workers, "workers", 8, "concurrent requests")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	flag.Parse()
	files := flag.Args()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if len(files) == 0 {
			return errors.New("usage: catalog-import [flags] FILE...")
		}
		c := client.New(apiURL, &http.Client{Timeout: timeout})
		return run(ctx, lg, c, files, workers)
	})
}

type catalog struct {
	path   string
	inputs []product.Input
}

func run(ctx context.Context, lg *zap.Logger, c *client.Client, files []string, workers int) error {
	catalogs := make([]catalog, 0, len(files))
	for _, path := range files {
		inputs, err := catalogfile.Open(path)
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		catalogs = append(catalogs, catalog{path: path, inputs: inputs})
	}

	var st stats
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for _, cat := range catalogs {
		lg.Info("Importing catalog", zap.String("path", cat.path), zap.Int("products", len(cat.inputs)))

		for i, in := range cat.inputs {
			plg := lg.With(zap.String("path", cat.path), zap.Int("index", i), zap.String("name", in.Name))
			if err := in.Validate(); err != nil {
				st.failed.Add(1)
				plg.Warn("Invalid product", zap.Error(err))
				continue
			}
			g.Go(func() error {
				importProduct(gCtx, plg, c, in, &st)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	lg.Info("Import finished",
		zap.Int64("created", st.created.Load()),
		zap.Int64("skipped", st.skipped.Load()),
		zap.Int64("failed", st.failed.Load()),
	)
	if n := st.failed.Load(); n > 0 {
		return errors.Errorf("%d products failed", n)
	}
	return ctx.Err()
}

func importProduct(ctx context.Context, lg *zap.Logger, c *client.Client, in product.Input, st *stats) {
	p, err := c.CreateProduct(ctx, client.ProductInput{
		Name:     in.Name,
		Price:    in.Price.Decimal,
		Stock:    *in.Stock,
		Category: in.Category,
	})
	switch {
	case err == nil:
		st.created.Add(1)
		lg.Debug("Created", zap.Int64("id", p.ID))
	case client.IsStatus(err, http.StatusConflict):
		st.skipped.Add(1)
		lg.Info("Skipped existing product")
	default:
		st.failed.Add(1)
		lg.Warn("Create failed", zap.Error(err))
	}
}
