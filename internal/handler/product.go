package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/tienda/internal/domain/product"
)

// ListProducts serves GET /productos.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := product.Filter{
		Category: q.Get("categoria"),
		MinPrice: decimalParam(q, "precio_min"),
		MaxPrice: decimalParam(q, "precio_max"),
	}

	res, err := h.products.List(r.Context(), filter, pageParam(q))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeResult(e, res, encodeProduct)
	})
}

// GetProduct serves GET /productos/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(r.Context(), w, product.ErrNotFound)
		return
	}

	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, *p)
	})
}

// CreateProduct serves POST /productos.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := h.productInput(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Producto creado exitosamente", "producto", func(e *jx.Encoder) {
		encodeProduct(e, *p)
	})
}

// UpdateProduct serves PUT /productos/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(r.Context(), w, product.ErrNotFound)
		return
	}
	in, err := h.productInput(w, r)
	if err != nil {
		// A missing product is reported before a malformed body.
		if _, getErr := h.products.Get(r.Context(), id); getErr != nil {
			err = getErr
		}
		writeError(r.Context(), w, err)
		return
	}

	p, err := h.products.Update(r.Context(), id, in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Producto actualizado exitosamente", "producto", func(e *jx.Encoder) {
		encodeProduct(e, *p)
	})
}

// DeleteProduct serves DELETE /productos/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(r.Context(), w, product.ErrNotFound)
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Producto eliminado exitosamente", "", nil)
}

func (h *Handler) productInput(w http.ResponseWriter, r *http.Request) (product.Input, error) {
	d, err := readBody(w, r)
	if err != nil {
		return product.Input{}, err
	}
	return decodeProductInput(d)
}
