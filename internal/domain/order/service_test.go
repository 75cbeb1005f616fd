package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/tienda/internal/domain/apperr"
	"github.com/xenking/tienda/internal/domain/order"
	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/internal/domain/query"
	"github.com/xenking/tienda/internal/storage/memory"
)

type fixture struct {
	products *product.Service
	orders   *order.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	orders, err := order.NewService(store.Orders(), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	return &fixture{
		products: product.NewService(store.Products()),
		orders:   orders,
	}
}

func (f *fixture) addProduct(t *testing.T, name, price string, stock int64) int64 {
	t.Helper()

	p, err := f.products.Create(context.Background(), product.Input{
		Name:     name,
		Price:    decimal.NewNullDecimal(decimal.RequireFromString(price)),
		Stock:    &stock,
		Category: "Test",
	})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) stock(t *testing.T, id int64) int64 {
	t.Helper()

	p, err := f.products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	laptop := f.addProduct(t, "Laptop", "799.99", 15)
	mouse := f.addProduct(t, "Mouse", "19.99", 50)

	o, err := f.orders.PlaceOrder(ctx, order.PlaceOrderRequest{
		Customer: "Ana",
		Items: []order.Item{
			{ProductID: laptop, Quantity: 2},
			{ProductID: mouse, Quantity: 3},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), o.ID)
	assert.Equal(t, "Ana", o.Customer)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, "1659.95", o.Total.StringFixed(2))
	assert.WithinDuration(t, time.Now(), o.CreatedAt, time.Minute)
	assert.Equal(t, time.UTC, o.CreatedAt.Location())

	assert.Equal(t, int64(13), f.stock(t, laptop))
	assert.Equal(t, int64(47), f.stock(t, mouse))

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, got.Items)
	assert.True(t, o.Total.Equal(got.Total))
}

func TestPlaceOrder_ExactStock(t *testing.T) {
	f := newFixture(t)
	id := f.addProduct(t, "Test", "10.00", 5)

	o, err := f.orders.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Customer: "Luis",
		Items:    []order.Item{{ProductID: id, Quantity: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, "50.00", o.Total.StringFixed(2))
	assert.Equal(t, int64(0), f.stock(t, id))
}

func TestPlaceOrder_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  order.PlaceOrderRequest
		msg  string
	}{
		{
			name: "missing customer",
			req:  order.PlaceOrderRequest{Items: []order.Item{{ProductID: 1, Quantity: 1}}},
			msg:  "Faltan campos obligatorios: cliente, items",
		},
		{
			name: "blank customer",
			req:  order.PlaceOrderRequest{Customer: "  ", Items: []order.Item{{ProductID: 1, Quantity: 1}}},
			msg:  "Faltan campos obligatorios: cliente, items",
		},
		{
			name: "no items",
			req:  order.PlaceOrderRequest{Customer: "Ana", Items: []order.Item{}},
			msg:  "Faltan campos obligatorios: cliente, items",
		},
		{
			name: "missing quantity",
			req:  order.PlaceOrderRequest{Customer: "Ana", Items: []order.Item{{ProductID: 1}}},
			msg:  "Item 0: cada item debe tener producto_id y cantidad",
		},
		{
			name: "missing product on second item",
			req: order.PlaceOrderRequest{Customer: "Ana", Items: []order.Item{
				{ProductID: 1, Quantity: 1},
				{Quantity: 1},
			}},
			msg: "Item 1: cada item debe tener producto_id y cantidad",
		},
		{
			name: "negative quantity",
			req:  order.PlaceOrderRequest{Customer: "Ana", Items: []order.Item{{ProductID: 1, Quantity: -2}}},
			msg:  "Item 0: la cantidad debe ser mayor a 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.addProduct(t, "Test", "10.00", 5)
			require.Equal(t, int64(1), id)

			_, err := f.orders.PlaceOrder(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
			assert.EqualError(t, err, tt.msg)
			assert.Equal(t, int64(5), f.stock(t, id))
		})
	}
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	id := f.addProduct(t, "Test", "10.00", 5)

	_, err := f.orders.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Customer: "Ana",
		Items: []order.Item{
			{ProductID: id, Quantity: 1},
			{ProductID: 999, Quantity: 1},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "Producto con ID 999 no encontrado")

	var notFound *order.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(999), notFound.ProductID)

	assert.Equal(t, int64(5), f.stock(t, id))
}

func TestPlaceOrder_InsufficientStockLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.addProduct(t, "A", "10.00", 10)
	b := f.addProduct(t, "B", "5.00", 1)

	_, err := f.orders.PlaceOrder(ctx, order.PlaceOrderRequest{
		Customer: "Ana",
		Items: []order.Item{
			{ProductID: a, Quantity: 3},
			{ProductID: b, Quantity: 2},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.EqualError(t, err, "Stock insuficiente para B. Disponible: 1, Solicitado: 2")

	assert.Equal(t, int64(10), f.stock(t, a))
	assert.Equal(t, int64(1), f.stock(t, b))

	res, err := f.orders.List(ctx, order.Filter{}, query.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Total)
}

func TestPlaceOrder_NotFoundBeforeStock(t *testing.T) {
	f := newFixture(t)
	id := f.addProduct(t, "A", "10.00", 1)

	_, err := f.orders.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Customer: "Ana",
		Items: []order.Item{
			{ProductID: id, Quantity: 5},
			{ProductID: 42, Quantity: 1},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPlaceOrder_DuplicateProductSharesStock(t *testing.T) {
	f := newFixture(t)
	id := f.addProduct(t, "A", "2.50", 5)

	_, err := f.orders.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Customer: "Ana",
		Items: []order.Item{
			{ProductID: id, Quantity: 3},
			{ProductID: id, Quantity: 3},
		},
	})
	require.Error(t, err)
	assert.EqualError(t, err, "Stock insuficiente para A. Disponible: 2, Solicitado: 3")
	assert.Equal(t, int64(5), f.stock(t, id))

	o, err := f.orders.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Customer: "Ana",
		Items: []order.Item{
			{ProductID: id, Quantity: 3},
			{ProductID: id, Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "12.50", o.Total.StringFixed(2))
	assert.Equal(t, int64(0), f.stock(t, id))
}

func TestPlaceOrder_RepeatUntilExhausted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addProduct(t, "Test", "10.00", 5)
	req := order.PlaceOrderRequest{
		Customer: "Ana",
		Items:    []order.Item{{ProductID: id, Quantity: 3}},
	}

	o, err := f.orders.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "30.00", o.Total.StringFixed(2))
	assert.Equal(t, int64(2), f.stock(t, id))

	_, err = f.orders.PlaceOrder(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, int64(2), f.stock(t, id))
}

func TestPlaceOrder_Concurrent(t *testing.T) {
	f := newFixture(t)
	id := f.addProduct(t, "Test", "1.00", 10)

	const workers = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.PlaceOrder(context.Background(), order.PlaceOrderRequest{
				Customer: "Ana",
				Items:    []order.Item{{ProductID: id, Quantity: 1}},
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	assert.Equal(t, int64(0), f.stock(t, id))
}

func TestPlaceOrder_SurvivesProductDeletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addProduct(t, "Test", "10.00", 5)

	o, err := f.orders.PlaceOrder(ctx, order.PlaceOrderRequest{
		Customer: "Ana",
		Items:    []order.Item{{ProductID: id, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, f.products.Delete(ctx, id))

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, []order.Item{{ProductID: id, Quantity: 1}}, got.Items)
}

func TestService_Get_NotFound(t *testing.T) {
	_, err := newFixture(t).orders.Get(context.Background(), 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "Orden no encontrada")
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addProduct(t, "Test", "1.00", 100)

	for _, customer := range []string{"Ana García", "Luis", "ana maría", "Pedro"} {
		_, err := f.orders.PlaceOrder(ctx, order.PlaceOrderRequest{
			Customer: customer,
			Items:    []order.Item{{ProductID: id, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	t.Run("customer filter", func(t *testing.T) {
		res, err := f.orders.List(ctx, order.Filter{Customer: "ANA"}, query.NewPage(1, 10))
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Total)
		require.Len(t, res.Items, 2)
		assert.Equal(t, "Ana García", res.Items[0].Customer)
		assert.Equal(t, "ana maría", res.Items[1].Customer)
	})

	t.Run("date range", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		future := time.Now().Add(time.Hour)

		res, err := f.orders.List(ctx, order.Filter{From: &past, To: &future}, query.NewPage(1, 10))
		require.NoError(t, err)
		assert.Equal(t, int64(4), res.Total)

		res, err = f.orders.List(ctx, order.Filter{From: &future}, query.NewPage(1, 10))
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.Total)
	})

	t.Run("inverted date range", func(t *testing.T) {
		from := time.Now()
		to := from.Add(-time.Hour)
		_, err := f.orders.List(ctx, order.Filter{From: &from, To: &to}, query.NewPage(1, 10))
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	})

	t.Run("pagination", func(t *testing.T) {
		res, err := f.orders.List(ctx, order.Filter{}, query.NewPage(2, 3))
		require.NoError(t, err)
		assert.Len(t, res.Items, 1)
		assert.Equal(t, 2, res.Pages)
		assert.True(t, res.HasPrev)
		assert.False(t, res.HasNext)

		_, err = f.orders.List(ctx, order.Filter{}, query.NewPage(3, 3))
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}
