package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	ogenjson "github.com/ogen-go/ogen/json"
	"github.com/shopspring/decimal"

	"github.com/xenking/tienda/internal/domain/apperr"
	"github.com/xenking/tienda/internal/domain/order"
	"github.com/xenking/tienda/internal/domain/product"
	"github.com/xenking/tienda/internal/domain/query"
)

var (
	errInvalidBody  = apperr.Invalid("Cuerpo de la solicitud inválido")
	errItemsNotList = apperr.Invalid("Items debe ser una lista no vacía")
)

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("nombre")
	e.Str(p.Name)
	e.FieldStart("precio")
	e.Float64(p.Price.InexactFloat64())
	e.FieldStart("stock")
	e.Int64(p.Stock)
	e.FieldStart("categoria")
	e.Str(p.Category)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("fecha")
	ogenjson.EncodeDateTime(e, o.CreatedAt)
	e.FieldStart("cliente")
	e.Str(o.Customer)
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("producto_id")
		e.Int64(item.ProductID)
		e.FieldStart("cantidad")
		e.Int64(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total_calculado")
	e.Float64(o.Total.InexactFloat64())
	e.ObjEnd()
}

func encodeResult[T any](e *jx.Encoder, res *query.Result[T], item func(*jx.Encoder, T)) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, v := range res.Items {
		item(e, v)
	}
	e.ArrEnd()
	e.FieldStart("page")
	e.Int(res.Page)
	e.FieldStart("size")
	e.Int(res.Size)
	e.FieldStart("total")
	e.Int64(res.Total)
	e.FieldStart("pages")
	e.Int(res.Pages)
	e.FieldStart("has_next")
	e.Bool(res.HasNext)
	e.FieldStart("has_prev")
	e.Bool(res.HasPrev)
	e.ObjEnd()
}

// readBody returns a decoder over the request body, which must be a JSON
// object.
func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errInvalidBody
	}
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return nil, errInvalidBody
	}
	return d, nil
}

// decodeProductInput reads the writable product fields. Absent and null
// fields are left unset for the service to reject.
func decodeProductInput(d *jx.Decoder) (product.Input, error) {
	var in product.Input
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "nombre":
			s, err := optString(d)
			in.Name = s
			return err
		case "categoria":
			s, err := optString(d)
			in.Category = s
			return err
		case "precio":
			v, ok, err := optNumber(d)
			if ok {
				in.Price = decimal.NewNullDecimal(v)
			}
			return err
		case "stock":
			v, ok, err := optNumber(d)
			if err != nil || !ok {
				return err
			}
			stock, problem := toInt64(v)
			if problem != "" {
				return apperr.Invalid("El stock %s", problem)
			}
			in.Stock = &stock
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return product.Input{}, asBodyError(err)
	}
	return in, nil
}

// decodeOrderRequest reads an order placement body. Absent, null and zero
// values are left as zero so the service reports them as missing. Items that
// cannot be read are recorded in Malformed rather than failing the decode.
func decodeOrderRequest(d *jx.Decoder) (order.PlaceOrderRequest, error) {
	var (
		req      order.PlaceOrderRequest
		notAList bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "cliente":
			s, err := optString(d)
			req.Customer = s
			return err
		case "items":
			switch d.Next() {
			case jx.Null:
				return d.Null()
			case jx.Array:
			default:
				notAList = true
				return d.Skip()
			}
			req.Items = []order.Item{}
			return d.Arr(func(d *jx.Decoder) error {
				item, reason, err := decodeItem(d)
				if err != nil {
					return err
				}
				if reason != "" {
					if req.Malformed == nil {
						req.Malformed = make(map[int]string)
					}
					req.Malformed[len(req.Items)] = reason
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return order.PlaceOrderRequest{}, asBodyError(err)
	}
	if notAList && strings.TrimSpace(req.Customer) != "" {
		return order.PlaceOrderRequest{}, errItemsNotList
	}
	return req, nil
}

// decodeItem reads one line item. An item that is not usable is returned
// zero with the first problem found in reason; err is only set for malformed
// JSON.
func decodeItem(d *jx.Decoder) (item order.Item, reason string, err error) {
	if d.Next() != jx.Object {
		return order.Item{}, "cada item debe tener producto_id y cantidad", d.Skip()
	}

	err = d.Obj(func(d *jx.Decoder, key string) error {
		var dst *int64
		switch key {
		case "producto_id":
			dst = &item.ProductID
		case "cantidad":
			dst = &item.Quantity
		default:
			return d.Skip()
		}

		switch d.Next() {
		case jx.Null:
			return d.Null()
		case jx.Number:
		default:
			if reason == "" {
				reason = key + " debe ser un número entero"
			}
			return d.Skip()
		}
		v, _, err := optNumber(d)
		if err != nil {
			return err
		}
		n, problem := toInt64(v)
		if problem != "" {
			if reason == "" {
				reason = key + " " + problem
			}
			return nil
		}
		*dst = n
		return nil
	})
	if err != nil || reason != "" {
		return order.Item{}, reason, err
	}
	return item, "", nil
}

// toInt64 converts v, reporting fractions and values outside the int64 range.
func toInt64(v decimal.Decimal) (int64, string) {
	switch {
	case !v.IsInteger():
		return 0, "debe ser un número entero"
	case !v.BigInt().IsInt64():
		return 0, "está fuera de rango"
	default:
		return v.IntPart(), ""
	}
}

// optString reads a string or null.
func optString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.String:
		return d.Str()
	default:
		return "", errInvalidBody
	}
}

// optNumber reads a number or null. ok is false for null.
func optNumber(d *jx.Decoder) (v decimal.Decimal, ok bool, err error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, false, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, false, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, false, errInvalidBody
		}
		return v, true, nil
	default:
		return decimal.Zero, false, errInvalidBody
	}
}

// asBodyError keeps client errors and turns syntax errors into errInvalidBody.
func asBodyError(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return errInvalidBody
}
