// Package lookup resolves barcodes to products.
package lookup

import (
	"context"
	"errors"
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// ErrNotFound means no source knows the barcode
var ErrNotFound = errors.New("product not found")

// Lookup resolves a barcode to a product
type Lookup interface {
	Lookup(ctx context.Context, barcode string) (model.Product, error)
}

// Chain tries each lookup in order and returns the first hit. Not-found
// answers fall through to the next source; other errors are remembered and
// returned if no source has the product.
type Chain []Lookup

// Lookup implements Lookup
func (c Chain) Lookup(ctx context.Context, barcode string) (model.Product, error) {
	var lastErr error
	for _, l := range c {
		p, err := l.Lookup(ctx, barcode)
		if err == nil {
			return p, nil
		}
		if ctx.Err() != nil {
			return model.Product{}, ctx.Err()
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return model.Product{}, lastErr
	}
	return model.Product{}, ErrNotFound
}

// NormalizeBarcode strips whitespace and dashes
func NormalizeBarcode(barcode string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(barcode))
}
