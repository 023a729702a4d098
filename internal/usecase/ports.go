package usecase

import (
	"context"
	"time"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/shopspring/decimal"
)

type ListFilter struct {
	UserID string // empty means all users
	Status domain.Status
	Offset int
	Limit  int
}

type StatusCount struct {
	Status domain.Status
	Count  int64
}

// RevenueSummary covers orders in revenue-bearing states (shipped, delivered).
type RevenueSummary struct {
	Total   decimal.Decimal
	Average decimal.Decimal
}

type OrderRepo interface {
	// Create must fail with domain.ErrDuplicateOrderNumber when the number is taken.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// LastNumberWithPrefix returns the highest order number starting with prefix, or "".
	LastNumberWithPrefix(ctx context.Context, prefix string) (string, error)
	List(ctx context.Context, f ListFilter) ([]*domain.Order, int64, error)
	// Save persists o if its stored version still equals o.Version, then bumps
	// o.Version. A stale version yields domain.ErrVersionConflict.
	Save(ctx context.Context, o *domain.Order) error
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	Revenue(ctx context.Context, statuses []domain.Status) (RevenueSummary, error)
}

type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// AdjustStock atomically adds delta to the product's stock. A negative delta
	// that would take stock below zero is rejected with domain.ErrStockConflict.
	AdjustStock(ctx context.Context, id string, delta int) error
}

type AccountStore interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	ClearCart(ctx context.Context, userID string) error
}

type OrderCache interface {
	Get(ctx context.Context, id string) (*domain.Order, bool, error)
	Set(ctx context.Context, o *domain.Order) error
	Delete(ctx context.Context, id string) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	Release(ctx context.Context, scope, key string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

// Recorder receives domain metrics.
type Recorder interface {
	OrderPlaced(total float64)
	PlacementFailed(kind string)
	StockCompensated(items int)
	RestockFailed(items int)
	StatusChanged(from, to domain.Status)
}

type Clock func() time.Time
