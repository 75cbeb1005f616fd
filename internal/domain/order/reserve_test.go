package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tienda/internal/domain/apperr"
	"github.com/xenking/tienda/internal/domain/product"
)

func catalog(products ...product.Product) map[int64]product.Product {
	m := make(map[int64]product.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}

func TestReserve(t *testing.T) {
	products := catalog(
		product.Product{ID: 1, Name: "A", Price: decimal.RequireFromString("0.10"), Stock: 10},
		product.Product{ID: 2, Name: "B", Price: decimal.RequireFromString("0.20"), Stock: 3},
	)

	tests := []struct {
		name  string
		items []Item
		total string
		kind  error
		msg   string
	}{
		{
			name:  "sums price times quantity",
			items: []Item{{ProductID: 1, Quantity: 3}, {ProductID: 2, Quantity: 1}},
			total: "0.50",
		},
		{
			name:  "decimal arithmetic is exact",
			items: []Item{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 1}},
			total: "0.30",
		},
		{
			name:  "missing product wins over stock",
			items: []Item{{ProductID: 2, Quantity: 100}, {ProductID: 9, Quantity: 1}},
			kind:  apperr.ErrNotFound,
			msg:   "Producto con ID 9 no encontrado",
		},
		{
			name:  "first short item is reported",
			items: []Item{{ProductID: 1, Quantity: 11}, {ProductID: 2, Quantity: 4}},
			kind:  apperr.ErrConflict,
			msg:   "Stock insuficiente para A. Disponible: 10, Solicitado: 11",
		},
		{
			name:  "repeated product uses remaining stock",
			items: []Item{{ProductID: 2, Quantity: 2}, {ProductID: 2, Quantity: 2}},
			kind:  apperr.ErrConflict,
			msg:   "Stock insuficiente para B. Disponible: 1, Solicitado: 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := reserve(tt.items, products)
			if tt.kind != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.kind)
				assert.EqualError(t, err, tt.msg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.total, total.StringFixed(2))
		})
	}

	// reserve never mutates its input.
	assert.Equal(t, int64(10), products[1].Stock)
	assert.Equal(t, int64(3), products[2].Stock)
}

func TestReserve_RoundsTotal(t *testing.T) {
	products := catalog(product.Product{ID: 1, Name: "A", Price: decimal.RequireFromString("0.333"), Stock: 10})

	total, err := reserve([]Item{{ProductID: 1, Quantity: 3}}, products)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.00").Equal(total))
}

func TestPlaceOrderRequest_ProductIDs(t *testing.T) {
	req := PlaceOrderRequest{Items: []Item{
		{ProductID: 5, Quantity: 1},
		{ProductID: 2, Quantity: 1},
		{ProductID: 5, Quantity: 2},
		{ProductID: 3, Quantity: 1},
	}}
	assert.Equal(t, []int64{2, 3, 5}, req.productIDs())
}

func TestReserve_TotalTooLarge(t *testing.T) {
	products := catalog(product.Product{ID: 1, Name: "A", Price: decimal.RequireFromString("9999999999.99"), Stock: 1000})

	_, err := reserve([]Item{{ProductID: 1, Quantity: 101}}, products)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	assert.EqualError(t, err, "El total de la orden excede el máximo permitido")

	total, err := reserve([]Item{{ProductID: 1, Quantity: 100}}, products)
	require.NoError(t, err)
	assert.Equal(t, "999999999999.00", total.StringFixed(2))
}

func TestPlaceOrderRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  PlaceOrderRequest
		msg  string
	}{
		{
			name: "envelope before malformed item",
			req: PlaceOrderRequest{
				Items:     []Item{{}},
				Malformed: map[int]string{0: "producto_id debe ser un número entero"},
			},
			msg: "Faltan campos obligatorios: cliente, items",
		},
		{
			name: "earlier negative quantity before later malformed item",
			req: PlaceOrderRequest{
				Customer:  "Ana",
				Items:     []Item{{ProductID: 1, Quantity: -1}, {}},
				Malformed: map[int]string{1: "producto_id debe ser un número entero"},
			},
			msg: "Item 0: la cantidad debe ser mayor a 0",
		},
		{
			name: "malformed item before later missing field",
			req: PlaceOrderRequest{
				Customer:  "Ana",
				Items:     []Item{{}, {ProductID: 1}},
				Malformed: map[int]string{0: "cantidad está fuera de rango"},
			},
			msg: "Item 0: cantidad está fuera de rango",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
			assert.EqualError(t, err, tt.msg)
		})
	}
}
