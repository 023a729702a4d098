package usecase_test

import (
	"context"
	"sync"
	"testing"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrder_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := place(t, f, line("P1", 1))

	got, err := f.uc.GetOrder(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Number, got.Number)

	_, err = f.uc.GetOrder(ctx, stranger, o.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.uc.GetOrder(ctx, admin, o.ID)
	require.NoError(t, err)

	_, err = f.uc.GetOrder(ctx, domain.Principal{}, o.ID)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]*domain.Order
}

func (c *mapCache) Get(_ context.Context, id string) (*domain.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.m[id]
	return o, ok, nil
}

func (c *mapCache) Set(_ context.Context, o *domain.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[o.ID] = o
	return nil
}

func (c *mapCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	return nil
}

func TestGetOrder_CacheStillChecksOwner(t *testing.T) {
	cache := &mapCache{m: map[string]*domain.Order{}}
	f := newFixture(t, usecase.WithCache(cache))
	ctx := context.Background()
	o := place(t, f, line("P1", 1))

	cached, ok, _ := cache.Get(ctx, o.ID)
	require.True(t, ok, "placement warms the cache")
	assert.Equal(t, o.Number, cached.Number)

	_, err := f.uc.GetOrder(ctx, stranger, o.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.uc.UpdateStatus(ctx, admin, o.ID, domain.StatusConfirmed, "")
	require.NoError(t, err)
	cached, _, _ = cache.Get(ctx, o.ID)
	assert.Equal(t, domain.StatusConfirmed, cached.Status)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		place(t, f, line("P2", 1))
	}
	other, err := f.uc.PlaceOrder(ctx, stranger, input(line("P1", 1)))
	require.NoError(t, err)

	page, err := f.uc.ListOrders(ctx, customer, usecase.ListQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, usecase.Pagination{CurrentPage: 1, Limit: 2, TotalPages: 2, TotalOrders: 3, HasNextPage: true}, page.Pagination)
	// newest first
	assert.Equal(t, "AL261016003", page.Orders[0].Number)

	page, err = f.uc.ListOrders(ctx, customer, usecase.ListQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 1)
	assert.True(t, page.Pagination.HasPrevPage)
	assert.False(t, page.Pagination.HasNextPage)

	page, err = f.uc.ListOrders(ctx, admin, usecase.ListQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Pagination.TotalOrders)
	assert.Equal(t, 10, page.Pagination.Limit)

	_, err = f.uc.CancelOrder(ctx, stranger, other.ID, "")
	require.NoError(t, err)
	page, err = f.uc.ListOrders(ctx, admin, usecase.ListQuery{Status: domain.StatusCancelled, Limit: 500})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, other.ID, page.Orders[0].ID)
	assert.Equal(t, 100, page.Pagination.Limit)

	_, err = f.uc.ListOrders(ctx, admin, usecase.ListQuery{Status: "lost"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.Stats(ctx, customer)
	require.ErrorIs(t, err, domain.ErrForbidden)

	a := place(t, f, line("P1", 1)) // 108.00
	b := place(t, f, line("P2", 1)) // 50 + 9.99 + 4 = 63.99
	place(t, f, line("P2", 1))
	for _, o := range []*domain.Order{a, b} {
		_, err := f.uc.UpdateStatus(ctx, admin, o.ID, domain.StatusConfirmed, "")
		require.NoError(t, err)
		_, err = f.uc.MarkShipped(ctx, admin, o.ID, usecase.ShipmentInput{Carrier: "UPS", TrackingNumber: o.Number})
		require.NoError(t, err)
	}
	_, err = f.uc.UpdateStatus(ctx, admin, b.ID, domain.StatusDelivered, "")
	require.NoError(t, err)

	s, err := f.uc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.EqualValues(t, 3, s.TotalOrders)
	assert.EqualValues(t, 1, s.PendingOrders)
	assert.EqualValues(t, 1, s.ShippedOrders)
	assert.EqualValues(t, 1, s.DeliveredOrders)
	assert.EqualValues(t, 0, s.CancelledOrders)
	assert.EqualValues(t, 0, s.ByStatus[domain.StatusReturned])
	assert.Equal(t, "171.99", s.TotalRevenue.StringFixed(2))
	assert.Equal(t, "86.00", s.AverageOrderValue.StringFixed(2))
}
