// Package client is a typed HTTP client for the tienda API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Product is a catalog item as returned by the API.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"nombre"`
	Price    decimal.Decimal `json:"precio"`
	Stock    int64           `json:"stock"`
	Category string          `json:"categoria"`
}

// ProductInput holds the writable product fields.
type ProductInput struct {
	Name     string
	Price    decimal.Decimal
	Stock    int64
	Category string
}

func (in ProductInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string      `json:"nombre"`
		Price    json.Number `json:"precio"`
		Stock    int64       `json:"stock"`
		Category string      `json:"categoria"`
	}{in.Name, json.Number(in.Price.String()), in.Stock, in.Category})
}

// Item is one order line.
type Item struct {
	ProductID int64 `json:"producto_id"`
	Quantity  int64 `json:"cantidad"`
}

// Order is a placed order.
type Order struct {
	ID       int64           `json:"id"`
	Date     time.Time       `json:"fecha"`
	Customer string          `json:"cliente"`
	Items    []Item          `json:"items"`
	Total    decimal.Decimal `json:"total_calculado"`
}

// OrderInput is the body of an order placement.
type OrderInput struct {
	Customer string `json:"cliente"`
	Items    []Item `json:"items"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items   []T   `json:"items"`
	Page    int   `json:"page"`
	Size    int   `json:"size"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

// ListOptions selects a page. Zero values use the server defaults.
type ListOptions struct {
	Page int
	Size int
}

func (o ListOptions) apply(q map[string]string) {
	if o.Page > 0 {
		q["page"] = strconv.Itoa(o.Page)
	}
	if o.Size > 0 {
		q["size"] = strconv.Itoa(o.Size)
	}
}

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	ListOptions
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	ListOptions
	Customer string
	From     time.Time
	To       time.Time
}

// Error is a non-2xx API response.
type Error struct {
	Status  int    `json:"code"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an API error with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client calls the tienda API.
type Client struct {
	r *resty.Client
}

// Option configures a Client.
type Option func(*resty.Client)

// WithRetry sets how many times a rate limited request is retried and the
// bounds of the wait between attempts. A Retry-After from the server wins
// over the computed backoff, up to maxWait.
func WithRetry(count int, wait, maxWait time.Duration) Option {
	return func(r *resty.Client) {
		r.SetRetryCount(count).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(maxWait)
	}
}

// New returns a Client for the API at baseURL. A nil hc uses a default
// http.Client. Requests rejected with 429 are retried 5 times by default.
func New(baseURL string, hc *http.Client, opts ...Option) *Client {
	r := resty.New()
	if hc != nil {
		r = resty.NewWithClient(hc)
	}
	r.SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetError(&Error{}).
		AddRetryCondition(func(resp *resty.Response, _ error) bool {
			return resp != nil && resp.StatusCode() == http.StatusTooManyRequests
		}).
		SetRetryAfter(retryAfter)
	WithRetry(5, 500*time.Millisecond, time.Minute)(r)
	for _, opt := range opts {
		opt(r)
	}
	return &Client{r: r}
}

// retryAfter waits the seconds a 429 response asks for. Zero leaves the
// wait to resty's backoff.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp.StatusCode() != http.StatusTooManyRequests {
		return 0, nil
	}
	secs, err := strconv.Atoi(resp.Header().Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0, nil
	}
	return time.Duration(secs) * time.Second, nil
}

func (c *Client) do(ctx context.Context, method, path string, req func(*resty.Request)) error {
	r := c.r.R().SetContext(ctx)
	if req != nil {
		req(r)
	}

	resp, err := r.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr, ok := resp.Error().(*Error)
	if !ok || apiErr.Message == "" {
		apiErr = &Error{Message: http.StatusText(resp.StatusCode())}
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}

type productEnvelope struct {
	Product Product `json:"producto"`
}

type orderEnvelope struct {
	Order Order `json:"orden"`
}

// CreateProduct adds a product to the catalog.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	var out productEnvelope
	err := c.do(ctx, http.MethodPost, "/productos", func(r *resty.Request) {
		r.SetBody(in).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out.Product, nil
}

// GetProduct returns product id.
func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var out Product
	err := c.do(ctx, http.MethodGet, "/productos/{id}", func(r *resty.Request) {
		r.SetPathParam("id", strconv.FormatInt(id, 10)).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProduct replaces every field of product id.
func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*Product, error) {
	var out productEnvelope
	err := c.do(ctx, http.MethodPut, "/productos/{id}", func(r *resty.Request) {
		r.SetPathParam("id", strconv.FormatInt(id, 10)).SetBody(in).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out.Product, nil
}

// DeleteProduct removes product id.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/productos/{id}", func(r *resty.Request) {
		r.SetPathParam("id", strconv.FormatInt(id, 10))
	})
}

// ListProducts returns one page of the catalog.
func (c *Client) ListProducts(ctx context.Context, f ProductFilter) (*Page[Product], error) {
	q := map[string]string{}
	f.apply(q)
	if f.Category != "" {
		q["categoria"] = f.Category
	}
	if f.MinPrice != nil {
		q["precio_min"] = f.MinPrice.String()
	}
	if f.MaxPrice != nil {
		q["precio_max"] = f.MaxPrice.String()
	}

	var out Page[Product]
	err := c.do(ctx, http.MethodGet, "/productos", func(r *resty.Request) {
		r.SetQueryParams(q).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceOrder places an order.
func (c *Client) PlaceOrder(ctx context.Context, in OrderInput) (*Order, error) {
	var out orderEnvelope
	err := c.do(ctx, http.MethodPost, "/ordenes", func(r *resty.Request) {
		r.SetBody(in).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out.Order, nil
}

// GetOrder returns order id.
func (c *Client) GetOrder(ctx context.Context, id int64) (*Order, error) {
	var out Order
	err := c.do(ctx, http.MethodGet, "/ordenes/{id}", func(r *resty.Request) {
		r.SetPathParam("id", strconv.FormatInt(id, 10)).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOrders returns one page of orders.
func (c *Client) ListOrders(ctx context.Context, f OrderFilter) (*Page[Order], error) {
	q := map[string]string{}
	f.apply(q)
	if f.Customer != "" {
		q["cliente"] = f.Customer
	}
	if !f.From.IsZero() {
		q["fecha_desde"] = f.From.UTC().Format(time.RFC3339Nano)
	}
	if !f.To.IsZero() {
		q["fecha_hasta"] = f.To.UTC().Format(time.RFC3339Nano)
	}

	var out Page[Order]
	err := c.do(ctx, http.MethodGet, "/ordenes", func(r *resty.Request) {
		r.SetQueryParams(q).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
