// Package handler exposes the catalog and order services over HTTP with JSON
// bodies.
package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/tienda/internal/domain/order"
	"github.com/xenking/tienda/internal/domain/product"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

const banner = "oLa cara de bOla"

// Handler serves the /productos and /ordenes resources.
type Handler struct {
	products *product.Service
	orders   *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products *product.Service, orders *order.Service) *Handler {
	return &Handler{
		products: products,
		orders:   orders,
	}
}

// Register adds every route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Home)

	mux.HandleFunc("GET /productos", h.ListProducts)
	mux.HandleFunc("POST /productos", h.CreateProduct)
	mux.HandleFunc("GET /productos/{id}", h.GetProduct)
	mux.HandleFunc("PUT /productos/{id}", h.UpdateProduct)
	mux.HandleFunc("DELETE /productos/{id}", h.DeleteProduct)

	mux.HandleFunc("GET /ordenes", h.ListOrders)
	mux.HandleFunc("POST /ordenes", h.PlaceOrder)
	mux.HandleFunc("GET /ordenes/{id}", h.GetOrder)
}

// Home answers the root path with a fixed greeting.
func (h *Handler) Home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str(banner)
		e.ObjEnd()
	})
}
