package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/tienda/internal/domain/order"
	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/internal/handler"
	"github.com/xenking/tienda/internal/storage/memory"
	"github.com/xenking/tienda/pkg/client"
	"github.com/xenking/tienda/pkg/httpmiddleware"
)

func newAPI(t *testing.T) http.Handler {
	t.Helper()

	store := memory.New()
	orders, err := order.NewService(store.Orders(), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	mux := http.NewServeMux()
	handler.NewHandler(product.NewService(store.Products()), orders).Register(mux)
	return mux
}

func newClient(t *testing.T) *client.Client {
	t.Helper()

	srv := httptest.NewServer(newAPI(t))
	t.Cleanup(srv.Close)
	return client.New(srv.URL, srv.Client())
}

func TestClient_Products(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	p, err := c.CreateProduct(ctx, client.ProductInput{
		Name:     "Laptop",
		Price:    decimal.RequireFromString("799.99"),
		Stock:    15,
		Category: "Electrónica",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.True(t, decimal.RequireFromString("799.99").Equal(p.Price))

	_, err = c.CreateProduct(ctx, client.ProductInput{
		Name:     "Laptop",
		Price:    decimal.NewFromInt(1),
		Category: "Otra",
	})
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, http.StatusConflict))

	_, err = c.CreateProduct(ctx, client.ProductInput{Name: "Mouse", Category: "Electrónica"})
	var apiErr *client.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "El precio debe ser mayor a 0", apiErr.Message)

	p, err = c.UpdateProduct(ctx, p.ID, client.ProductInput{
		Name:     "Laptop Pro",
		Price:    decimal.RequireFromString("999.99"),
		Stock:    5,
		Category: "Electrónica",
	})
	require.NoError(t, err)
	assert.Equal(t, "Laptop Pro", p.Name)

	got, err := c.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)

	lo := decimal.NewFromInt(500)
	page, err := c.ListProducts(ctx, client.ProductFilter{Category: "electr", MinPrice: &lo})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)

	require.NoError(t, c.DeleteProduct(ctx, p.ID))
	_, err = c.GetProduct(ctx, p.ID)
	assert.True(t, client.IsStatus(err, http.StatusNotFound))
}

func TestClient_Orders(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	p, err := c.CreateProduct(ctx, client.ProductInput{
		Name:     "Silla",
		Price:    decimal.RequireFromString("149.50"),
		Stock:    3,
		Category: "Muebles",
	})
	require.NoError(t, err)

	before := time.Now().Add(-time.Minute)
	o, err := c.PlaceOrder(ctx, client.OrderInput{
		Customer: "Ana",
		Items:    []client.Item{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("299").Equal(o.Total))
	assert.Equal(t, []client.Item{{ProductID: p.ID, Quantity: 2}}, o.Items)

	_, err = c.PlaceOrder(ctx, client.OrderInput{
		Customer: "Ana",
		Items:    []client.Item{{ProductID: p.ID, Quantity: 2}},
	})
	var apiErr *client.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Stock insuficiente para Silla. Disponible: 1, Solicitado: 2", apiErr.Message)

	got, err := c.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Customer)
	assert.True(t, o.Date.Equal(got.Date))

	page, err := c.ListOrders(ctx, client.OrderFilter{Customer: "an", From: before})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = c.ListOrders(ctx, client.OrderFilter{To: before})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	_, err = c.GetOrder(ctx, 99)
	assert.True(t, client.IsStatus(err, http.StatusNotFound))
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := client.New(srv.URL, nil).GetProduct(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, client.IsStatus(err, http.StatusNotFound))
}

func TestClient_RetriesRateLimited(t *testing.T) {
	limiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Max:    1,
		Window: 500 * time.Millisecond,
	})
	srv := httptest.NewServer(limiter.Middleware()(newAPI(t)))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	c := client.New(srv.URL, srv.Client(), client.WithRetry(3, 10*time.Millisecond, 5*time.Second))

	for _, name := range []string{"A", "B"} {
		_, err := c.CreateProduct(ctx, client.ProductInput{
			Name: name, Price: decimal.NewFromInt(1), Stock: 1, Category: "X",
		})
		require.NoError(t, err, name)
	}

	page, err := c.ListProducts(ctx, client.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}

func TestClient_HonoursRetryAfter(t *testing.T) {
	var rejected atomic.Bool
	api := newAPI(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && rejected.CompareAndSwap(false, true) {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		api.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	c := client.New(srv.URL, srv.Client(), client.WithRetry(3, 10*time.Millisecond, 5*time.Second))

	start := time.Now()
	p, err := c.CreateProduct(context.Background(), client.ProductInput{
		Name: "A", Price: decimal.NewFromInt(1), Stock: 1, Category: "X",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestClient_RateLimitRetriesExhausted(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":429,"error":"Demasiadas solicitudes, intenta más tarde"}`))
	}))
	t.Cleanup(srv.Close)

	c := client.New(srv.URL, srv.Client(), client.WithRetry(2, time.Millisecond, 5*time.Millisecond))
	_, err := c.PlaceOrder(context.Background(), client.OrderInput{
		Customer: "Ana", Items: []client.Item{{ProductID: 1, Quantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, http.StatusTooManyRequests))
	assert.EqualError(t, err, "api: 429 Demasiadas solicitudes, intenta más tarde")
	assert.Equal(t, int64(3), attempts.Load())
}

func TestClient_NoRetryOnClientErrors(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":409,"error":"Ya existe un producto con este nombre"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := client.New(srv.URL, srv.Client()).CreateProduct(context.Background(), client.ProductInput{
		Name: "A", Price: decimal.NewFromInt(1), Stock: 1, Category: "X",
	})
	assert.True(t, client.IsStatus(err, http.StatusConflict))
	assert.Equal(t, int64(1), attempts.Load())
}
