// Package memory holds mutex-guarded in-process stores with the same atomicity
// guarantees as the database adapters. Used for local runs and tests.
package memory

import (
	"context"
	"sync"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
)

type Catalog struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *Catalog) Put(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// Stock returns the current stock of id, or -1 if the product is unknown.
func (c *Catalog) Stock(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return -1
	}
	return p.Stock
}

func (c *Catalog) GetByID(_ context.Context, id string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (c *Catalog) AdjustStock(ctx context.Context, id string, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return domain.ErrStockConflict
	}
	p.Stock += delta
	c.products[id] = p
	return nil
}

var _ usecase.ProductCatalog = (*Catalog)(nil)
