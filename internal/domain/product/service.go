package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tienda/internal/domain/apperr"
	"github.com/xenking/tienda/internal/domain/query"
)

// Service implements catalog CRUD on top of a Repository.
type Service struct {
	products Repository
}

// NewService creates a catalog Service.
func NewService(products Repository) *Service {
	return &Service{products: products}
}

// List returns one page of products matching filter.
func (s *Service) List(ctx context.Context, filter Filter, page query.Page) (*query.Result[Product], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	preds := filter.Predicates()
	total, err := s.products.Count(ctx, preds)
	if err != nil {
		return nil, errors.Wrap(err, "count products")
	}
	if err := page.Check(total); err != nil {
		return nil, err
	}

	items, err := s.products.List(ctx, preds, page)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return query.NewResult(items, page, total), nil
}

// Get returns a single product by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

// Create validates in and stores it as a new product.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	p, err := s.checkInput(ctx, in, 0)
	if err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		if errors.Is(err, ErrNameTaken) {
			return nil, ErrNameTaken
		}
		return nil, errors.Wrap(err, "create product")
	}

	zctx.From(ctx).Info("Product created",
		zap.Int64("product_id", p.ID),
		zap.String("name", p.Name),
	)
	return p, nil
}

// Update replaces every writable field of product id with in.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Product, error) {
	// Existence is reported before body validation.
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	p, err := s.checkInput(ctx, in, id)
	if err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.products.Update(ctx, p); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, ErrNameTaken):
			return nil, errNameTakenByOther
		}
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

// Delete removes product id. Orders keep their own snapshot of line items,
// so no referential check is made.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete product")
	}

	zctx.From(ctx).Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

var errNameTakenByOther = apperr.Conflict("Ya existe otro producto con este nombre")

// checkInput applies the create/update validation rules and returns the
// product to persist. excludeID is the product being updated, or zero.
func (s *Service) checkInput(ctx context.Context, in Input, excludeID int64) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	taken, err := s.products.NameTaken(ctx, in.Name, excludeID)
	if err != nil {
		return nil, errors.Wrap(err, "check product name")
	}
	if taken {
		if excludeID != 0 {
			return nil, errNameTakenByOther
		}
		return nil, ErrNameTaken
	}

	p := in.Product()
	return &p, nil
}
