package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tienda/internal/catalogfile"
	"github.com/xenking/tienda/internal/domain/order"
	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/internal/handler"
	"github.com/xenking/tienda/internal/storage/postgres"
	"github.com/xenking/tienda/pkg/health"
	"github.com/xenking/tienda/pkg/httpmiddleware"
)

// Telemetry carries the instrumentation providers.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	if cfg.Seed {
		if err := seedCatalog(ctx, lg, pool); err != nil {
			return err
		}
	}

	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Add(health.Liveness, "gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	orderService, err := order.NewService(postgres.NewOrderRepository(pool), m.TracerProvider, m.MeterProvider)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	productService := product.NewService(postgres.NewProductRepository(pool))

	mux := http.NewServeMux()
	healthSvc.Register(mux)
	handler.NewHandler(productService, orderService).Register(mux)

	limiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("tienda-api", m.TracerProvider, m.MeterProvider),
			limiter.Middleware(),
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		limiter.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		healthSvc.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}

// seedCatalog loads the embedded catalog into an empty products table.
func seedCatalog(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool) error {
	inputs, err := catalogfile.Default()
	if err != nil {
		return errors.Wrap(err, "read embedded catalog")
	}
	products, err := catalogfile.Products(inputs)
	if err != nil {
		return errors.Wrap(err, "embedded catalog")
	}

	n, err := postgres.SeedProducts(ctx, pool, products)
	if err != nil {
		return err
	}
	if n > 0 {
		lg.Info("Seeded catalog", zap.Int64("products", n))
	}
	return nil
}
