// Package catalogfile reads product catalogs: JSON arrays of products in the
// same shape the API accepts, optionally gzip-compressed.
package catalogfile

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/tienda/db"
	"github.com/xenking/tienda/internal/domain/product"
)

// Open reads the catalog at path. Paths ending in ".gz" are decompressed.
func Open(path string) ([]product.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	return Decode(r)
}

// Default returns the catalog embedded in the binary.
func Default() ([]product.Input, error) {
	return Decode(bytes.NewReader(db.SeedProducts))
}

// Decode reads a JSON array of products from r.
func Decode(r io.Reader) ([]product.Input, error) {
	d := jx.Decode(r, 4096)

	var out []product.Input
	if err := d.Arr(func(d *jx.Decoder) error {
		in, err := decodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product %d", len(out))
		}
		out = append(out, in)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return out, nil
}

// Products validates a decoded catalog and converts it for bulk loading.
// Names must be unique within the catalog.
func Products(inputs []product.Input) ([]product.Product, error) {
	out := make([]product.Product, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, errors.Wrapf(err, "product %d", i)
		}
		if _, dup := seen[in.Name]; dup {
			return nil, errors.Errorf("product %d: duplicate name %q", i, in.Name)
		}
		seen[in.Name] = struct{}{}
		out = append(out, in.Product())
	}
	return out, nil
}

func decodeProduct(d *jx.Decoder) (product.Input, error) {
	var in product.Input
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "nombre":
			s, err := d.Str()
			in.Name = s
			return err
		case "categoria":
			s, err := d.Str()
			in.Category = s
			return err
		case "precio":
			n, err := d.Num()
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(n.String())
			if err != nil {
				return errors.Wrap(err, "precio")
			}
			in.Price = decimal.NewNullDecimal(price)
			return nil
		case "stock":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			in.Stock = &v
			return nil
		default:
			return d.Skip()
		}
	})
	return in, err
}
