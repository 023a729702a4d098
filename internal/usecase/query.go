package usecase

import (
	"context"
	"fmt"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type ListQuery struct {
	Status domain.Status
	Page   int
	Limit  int
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	TotalOrders int64 `json:"totalOrders"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

type OrderPage struct {
	Orders     []*domain.Order `json:"orders"`
	Pagination Pagination      `json:"pagination"`
}

type Stats struct {
	TotalOrders       int64                   `json:"totalOrders"`
	ByStatus          map[domain.Status]int64 `json:"byStatus"`
	PendingOrders     int64                   `json:"pendingOrders"`
	ShippedOrders     int64                   `json:"shippedOrders"`
	DeliveredOrders   int64                   `json:"deliveredOrders"`
	CancelledOrders   int64                   `json:"cancelledOrders"`
	TotalRevenue      decimal.Decimal         `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal         `json:"averageOrderValue"`
}

// GetOrder returns the order if the caller owns it or is an administrator.
// Anyone else gets domain.ErrNotFound.
func (uc *Orders) GetOrder(ctx context.Context, p domain.Principal, id string) (*domain.Order, error) {
	if p.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if o, ok, err := uc.cache.Get(ctx, id); err == nil && ok {
		if !p.CanView(o.UserID) {
			return nil, domain.ErrNotFound
		}
		return o, nil
	} else if err != nil {
		logging.FromCtx(ctx).Warn("order cache read failed", "order_id", id, "err", err)
	}

	o, err := uc.loadVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}
	uc.refreshCache(ctx, o)
	return o, nil
}

func (uc *Orders) ListOrders(ctx context.Context, p domain.Principal, q ListQuery) (OrderPage, error) {
	if p.UserID == "" {
		return OrderPage{}, domain.ErrUnauthenticated
	}
	if q.Status != "" && !q.Status.Valid() {
		v := &domain.ValidationError{}
		v.Add("status", "invalid order status")
		return OrderPage{}, v
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}

	f := ListFilter{Status: q.Status, Offset: (q.Page - 1) * q.Limit, Limit: q.Limit}
	if !p.IsAdmin() {
		f.UserID = p.UserID
	}
	orders, total, err := uc.repo.List(ctx, f)
	if err != nil {
		return OrderPage{}, fmt.Errorf("list orders: %w", err)
	}

	pages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return OrderPage{
		Orders: orders,
		Pagination: Pagination{
			CurrentPage: q.Page,
			Limit:       q.Limit,
			TotalPages:  pages,
			TotalOrders: total,
			HasNextPage: q.Page < pages,
			HasPrevPage: q.Page > 1,
		},
	}, nil
}

// Stats aggregates order counts per status and revenue over shipped and delivered orders.
func (uc *Orders) Stats(ctx context.Context, p domain.Principal) (Stats, error) {
	if !p.IsAdmin() {
		return Stats{}, domain.ErrForbidden
	}
	counts, err := uc.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count by status: %w", err)
	}
	rev, err := uc.repo.Revenue(ctx, []domain.Status{domain.StatusShipped, domain.StatusDelivered})
	if err != nil {
		return Stats{}, fmt.Errorf("revenue: %w", err)
	}

	s := Stats{ByStatus: make(map[domain.Status]int64, len(domain.AllStatuses))}
	for _, st := range domain.AllStatuses {
		s.ByStatus[st] = 0
	}
	for _, c := range counts {
		s.ByStatus[c.Status] = c.Count
		s.TotalOrders += c.Count
	}
	s.PendingOrders = s.ByStatus[domain.StatusPending]
	s.ShippedOrders = s.ByStatus[domain.StatusShipped]
	s.DeliveredOrders = s.ByStatus[domain.StatusDelivered]
	s.CancelledOrders = s.ByStatus[domain.StatusCancelled]
	s.TotalRevenue = rev.Total.Round(2)
	s.AverageOrderValue = rev.Average.Round(2)
	return s, nil
}
