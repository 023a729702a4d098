package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func sampleOrder() *domain.Order {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	items := []domain.LineItem{{ProductID: "P1", Name: "Lamp", UnitPrice: decimal.RequireFromString("100"), Quantity: 1}}
	pricing := domain.Pricing{Subtotal: decimal.RequireFromString("100"), Total: decimal.RequireFromString("108")}
	o := domain.NewOrder("o-1", "u-1", items, pricing, domain.PaymentCreditCard, domain.ShippingStandard, now)
	o.Number = "AL261016001"
	return o
}

func TestMySQLOrderRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	r := NewMySQLOrderRepo(db)
	o := sampleOrder()

	mock.ExpectExec("INSERT INTO orders").
		WithArgs("o-1", "AL261016001", "u-1", "pending", sqlmock.AnyArg(), sqlmock.AnyArg(), o.CreatedAt, o.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, r.Create(context.Background(), o))
	assert.EqualValues(t, 1, o.Version)

	mock.ExpectExec("INSERT INTO orders").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'AL261016001'"})
	err := r.Create(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, domain.ErrDuplicateOrderNumber)
}

func TestMySQLOrderRepo_GetByID(t *testing.T) {
	db, mock := newMock(t)
	r := NewMySQLOrderRepo(db)

	doc, err := json.Marshal(sampleOrder())
	require.NoError(t, err)
	mock.ExpectQuery("SELECT doc,version FROM orders WHERE id=").
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"doc", "version"}).AddRow(doc, 4))

	o, err := r.GetByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, "AL261016001", o.Number)
	assert.EqualValues(t, 4, o.Version)
	assert.True(t, o.Pricing.Total.Equal(decimal.RequireFromString("108")))

	mock.ExpectQuery("SELECT doc,version FROM orders").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err = r.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMySQLOrderRepo_LastNumberWithPrefix(t *testing.T) {
	db, mock := newMock(t)
	r := NewMySQLOrderRepo(db)

	mock.ExpectQuery("SELECT order_number FROM orders").
		WithArgs("AL261016%").
		WillReturnRows(sqlmock.NewRows([]string{"order_number"}).AddRow("AL261016007"))
	n, err := r.LastNumberWithPrefix(context.Background(), "AL261016")
	require.NoError(t, err)
	assert.Equal(t, "AL261016007", n)

	mock.ExpectQuery("SELECT order_number FROM orders").
		WithArgs("AL261017%").
		WillReturnRows(sqlmock.NewRows([]string{"order_number"}))
	n, err = r.LastNumberWithPrefix(context.Background(), "AL261017")
	require.NoError(t, err)
	assert.Empty(t, n)

	mock.ExpectQuery(`LIKE \? ESCAPE '!'`).
		WithArgs("SHOP!_1!%!!261016%").
		WillReturnRows(sqlmock.NewRows([]string{"order_number"}))
	_, err = r.LastNumberWithPrefix(context.Background(), "SHOP_1%!261016")
	require.NoError(t, err)
}

func TestMySQLOrderRepo_Save(t *testing.T) {
	db, mock := newMock(t)
	r := NewMySQLOrderRepo(db)
	o := sampleOrder()
	o.Version = 2

	mock.ExpectExec("UPDATE orders").
		WithArgs("pending", sqlmock.AnyArg(), sqlmock.AnyArg(), o.UpdatedAt, "o-1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, r.Save(context.Background(), o))
	assert.EqualValues(t, 3, o.Version)

	mock.ExpectExec("UPDATE orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM orders").WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	err := r.Save(context.Background(), o)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.EqualValues(t, 3, o.Version, "version untouched on conflict")

	mock.ExpectExec("UPDATE orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM orders").WithArgs("o-1").WillReturnError(sql.ErrNoRows)
	err = r.Save(context.Background(), o)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMySQLOrderRepo_List(t *testing.T) {
	db, mock := newMock(t)
	r := NewMySQLOrderRepo(db)
	doc, err := json.Marshal(sampleOrder())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders WHERE user_id=\? AND status=\?`).
		WithArgs("u-1", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(`SELECT doc,version FROM orders WHERE user_id=\? AND status=\? ORDER BY created_at DESC, order_number DESC LIMIT \? OFFSET \?`).
		WithArgs("u-1", "pending", 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"doc", "version"}).AddRow(doc, 1))

	orders, total, err := r.List(context.Background(), usecase.ListFilter{UserID: "u-1", Status: domain.StatusPending, Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 11, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "o-1", orders[0].ID)
}

func TestMySQLOrderRepo_Aggregates(t *testing.T) {
	db, mock := newMock(t)
	r := NewMySQLOrderRepo(db)

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 3).AddRow("shipped", 2))
	counts, err := r.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []usecase.StatusCount{{Status: domain.StatusPending, Count: 3}, {Status: domain.StatusShipped, Count: 2}}, counts)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(total\),0\), COALESCE\(AVG\(total\),0\) FROM orders WHERE status IN \(\?,\?\)`).
		WithArgs("shipped", "delivered").
		WillReturnRows(sqlmock.NewRows([]string{"sum", "avg"}).AddRow("171.99", "85.995000"))
	rev, err := r.Revenue(context.Background(), []domain.Status{domain.StatusShipped, domain.StatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, "171.99", rev.Total.StringFixed(2))
	assert.Equal(t, "86.00", rev.Average.StringFixed(2))

	mock.ExpectQuery("SELECT status, COUNT").WillReturnError(errors.New("conn refused"))
	_, err = r.CountByStatus(context.Background())
	assert.Error(t, err)
}
