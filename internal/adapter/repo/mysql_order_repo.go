package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
)

// MySQLOrderRepo keeps each order as a JSON document next to the scalar columns
// that queries filter, sort and aggregate on.
type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	o.Version = 1
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO orders (id,order_number,user_id,status,total,doc,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,1,?,?)
`, o.ID, o.Number, o.UserID, o.Status, o.Pricing.Total, doc, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	if isDuplicate(err) {
		return domain.ErrDuplicateOrderNumber
	}
	return err
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT doc,version FROM orders WHERE id=?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return o, err
}

func (r *MySQLOrderRepo) LastNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var n string
	err := r.db.QueryRowContext(ctx, `
SELECT order_number FROM orders
WHERE order_number LIKE ? ESCAPE '!'
ORDER BY order_number DESC LIMIT 1`, likePrefix(prefix)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return n, err
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePrefix matches strings starting with prefix, taken literally.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

func (r *MySQLOrderRepo) List(ctx context.Context, f usecase.ListFilter) ([]*domain.Order, int64, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = int(total)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT doc,version FROM orders"+clause+" ORDER BY created_at DESC, order_number DESC LIMIT ? OFFSET ?",
		append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]*domain.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *MySQLOrderRepo) Save(ctx context.Context, o *domain.Order) error {
	next := *o
	next.Version = o.Version + 1
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE orders
SET status=?, total=?, doc=?, version=version+1, updated_at=?
WHERE id=? AND version=?`,
		o.Status, o.Pricing.Total, doc, o.UpdatedAt.UTC(), o.ID, o.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.missOrConflict(ctx, o.ID)
	}
	o.Version = next.Version
	return nil
}

func (r *MySQLOrderRepo) missOrConflict(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id=?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrVersionConflict
}

func (r *MySQLOrderRepo) CountByStatus(ctx context.Context) ([]usecase.StatusCount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usecase.StatusCount
	for rows.Next() {
		var c usecase.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *MySQLOrderRepo) Revenue(ctx context.Context, statuses []domain.Status) (usecase.RevenueSummary, error) {
	var sum usecase.RevenueSummary
	if len(statuses) == 0 {
		return sum, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(total),0), COALESCE(AVG(total),0) FROM orders WHERE status IN ("+marks+")",
		args...).Scan(&sum.Total, &sum.Average)
	return sum, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var (
		doc     []byte
		version int64
	)
	if err := s.Scan(&doc, &version); err != nil {
		return nil, err
	}
	var o domain.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	o.Version = version
	return &o, nil
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
