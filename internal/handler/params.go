package handler

import (
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ogen-go/ogen/conv"
	"github.com/shopspring/decimal"

	"github.com/xenking/tienda/internal/domain/apperr"
	"github.com/xenking/tienda/internal/domain/query"
)

// naiveLayouts are ISO 8601 forms without a zone offset, read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// intParam returns the integer value of q[name], or def when the parameter is
// absent or not an integer.
func intParam(q url.Values, name string, def int) int {
	v, err := conv.ToInt(q.Get(name))
	if err != nil {
		return def
	}
	return v
}

// decimalParam returns the numeric value of q[name], or nil when the
// parameter is absent or not a finite number.
func decimalParam(q url.Values, name string) *decimal.Decimal {
	s := q.Get(name)
	if s == "" {
		return nil
	}
	f, err := conv.ToFloat64(s)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		v = decimal.NewFromFloat(f)
	}
	return &v
}

// timeParam parses q[name] as an ISO 8601 date or date-time. A missing
// parameter yields nil; a malformed one is a client error.
func timeParam(q url.Values, name string) (*time.Time, error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil
	}
	t, ok := parseISOTime(s)
	if !ok {
		return nil, apperr.Invalid("Formato de %s inválido. Usa formato ISO", name)
	}
	return &t, nil
}

func parseISOTime(s string) (time.Time, bool) {
	if t, err := conv.ToDateTime(s); err == nil {
		return t, true
	}
	// A space separator is accepted with an offset too.
	if t, err := conv.ToDateTime(strings.Replace(s, " ", "T", 1)); err == nil {
		return t, true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	if t, err := conv.ToDate(s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func pageParam(q url.Values) query.Page {
	return query.NewPage(
		intParam(q, "page", query.DefaultPage),
		intParam(q, "size", query.DefaultSize),
	)
}

// pathID reads the {id} path segment. ok is false when it is not a
// non-negative integer, which callers report as a missing resource.
func pathID(r *http.Request) (id int64, ok bool) {
	s := r.PathValue("id")
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}
	id, err := conv.ToInt64(s)
	if err != nil {
		return 0, false
	}
	return id, true
}
