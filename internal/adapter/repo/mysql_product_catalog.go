package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
)

type MySQLProductCatalog struct{ db *sql.DB }

func NewMySQLProductCatalog(db *sql.DB) *MySQLProductCatalog { return &MySQLProductCatalog{db: db} }

func (c *MySQLProductCatalog) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := c.db.QueryRowContext(ctx, `
SELECT id,name,price,stock,is_active,image_url,image_alt
FROM products WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Active, &p.Image.URL, &p.Image.Alt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AdjustStock is a single conditional UPDATE, so the check and the decrement
// cannot interleave with another order.
func (c *MySQLProductCatalog) AdjustStock(ctx context.Context, id string, delta int) error {
	if delta == 0 {
		return nil
	}
	res, err := c.db.ExecContext(ctx, `
UPDATE products SET stock = stock + ?
WHERE id = ? AND stock + ? >= 0`, delta, id, delta)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var one int
	err = c.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id=?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrStockConflict
}

var _ usecase.ProductCatalog = (*MySQLProductCatalog)(nil)
