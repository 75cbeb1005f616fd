package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/tienda/internal/domain/order"
)

// PlaceOrder serves POST /ordenes.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	req, err := decodeOrderRequest(d)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Orden creada exitosamente", "orden", func(e *jx.Encoder) {
		encodeOrder(e, *o)
	})
}

// ListOrders serves GET /ordenes.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := timeParam(q, "fecha_desde")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	to, err := timeParam(q, "fecha_hasta")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	filter := order.Filter{
		Customer: q.Get("cliente"),
		From:     from,
		To:       to,
	}
	res, err := h.orders.List(r.Context(), filter, pageParam(q))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeResult(e, res, encodeOrder)
	})
}

// GetOrder serves GET /ordenes/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(r.Context(), w, order.ErrNotFound)
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, *o)
	})
}
