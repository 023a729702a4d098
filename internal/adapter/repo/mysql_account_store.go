package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
)

type MySQLAccountStore struct{ db *sql.DB }

func NewMySQLAccountStore(db *sql.DB) *MySQLAccountStore { return &MySQLAccountStore{db: db} }

const selectUser = `
SELECT id,email,password_hash,role,first_name,last_name,phone
FROM users `

func (s *MySQLAccountStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.load(ctx, s.db.QueryRowContext(ctx, selectUser+`WHERE id=?`, id))
}

func (s *MySQLAccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.load(ctx, s.db.QueryRowContext(ctx, selectUser+`WHERE email=?`, email))
}

func (s *MySQLAccountStore) ClearCart(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id=?`, userID)
	return err
}

func (s *MySQLAccountStore) load(ctx context.Context, row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.FirstName, &a.LastName, &a.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT product_id,quantity FROM cart_items WHERE user_id=? ORDER BY position`, a.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		a.Cart.Items = append(a.Cart.Items, it)
	}
	return &a, rows.Err()
}

var _ usecase.AccountStore = (*MySQLAccountStore)(nil)
