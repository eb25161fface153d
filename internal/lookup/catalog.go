package lookup

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/stackguard/internal/model"
)

// catalogFile is the on-disk catalog layout
type catalogFile struct {
	Products []model.Product `yaml:"products"`
}

// Catalog is an in-memory barcode index, optionally loaded from YAML
type Catalog struct {
	mu       sync.RWMutex
	products map[string]model.Product
}

// NewCatalog creates a catalog holding products
func NewCatalog(products ...model.Product) *Catalog {
	c := &Catalog{products: make(map[string]model.Product, len(products))}
	for _, p := range products {
		c.products[NormalizeBarcode(p.ID)] = p
	}
	return c
}

// LoadCatalog reads a YAML catalog file. Every product must validate.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for i, p := range file.Products {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("catalog product %d (%q): %w", i, p.ID, err)
		}
	}

	return NewCatalog(file.Products...), nil
}

// Add inserts or replaces a product
func (c *Catalog) Add(p model.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[NormalizeBarcode(p.ID)] = p
}

// Len returns the number of products
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Lookup implements Lookup
func (c *Catalog) Lookup(ctx context.Context, barcode string) (model.Product, error) {
	if err := ctx.Err(); err != nil {
		return model.Product{}, err
	}

	c.mu.RLock()
	p, ok := c.products[NormalizeBarcode(barcode)]
	c.mu.RUnlock()

	if !ok {
		return model.Product{}, ErrNotFound
	}
	return p, nil
}
