package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tienda/internal/domain/apperr"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeMessage writes {"message": msg} optionally followed by one more field.
func writeMessage(w http.ResponseWriter, status int, msg, field string, value func(e *jx.Encoder)) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str(msg)
		if value != nil {
			e.FieldStart(field)
			value(e)
		}
		e.ObjEnd()
	})
}

// writeError maps err to a status code by its apperr kind. Errors outside the
// taxonomy are logged and reported as 500 without details.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "Error interno del servidor"

	switch apperr.Kind(err) {
	case apperr.ErrInvalidRequest:
		status, msg = http.StatusBadRequest, err.Error()
	case apperr.ErrNotFound:
		status, msg = http.StatusNotFound, err.Error()
	case apperr.ErrConflict:
		status, msg = http.StatusConflict, err.Error()
	default:
		zctx.From(ctx).Error("Request failed", zap.Error(err))
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("error")
		e.Str(msg)
		e.ObjEnd()
	})
}
