package usecase

import (
	"context"
	"errors"
	"time"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/shopspring/decimal"
)

const (
	defaultNumberRetries       = 5
	defaultSaveRetries         = 3
	defaultCompensationTimeout = 5 * time.Second
)

type OrdersConfig struct {
	NumberPrefix        string
	Location            *time.Location
	Pricing             domain.PricingPolicy
	Coupons             map[string]decimal.Decimal
	NumberRetries       int
	CompensationTimeout time.Duration
}

// Orders is the order processor: placement, state transitions and queries.
// It holds no per-request state.
type Orders struct {
	repo     OrderRepo
	catalog  ProductCatalog
	accounts AccountStore
	cache    OrderCache
	idem     IdempotencyStore
	events   EventPublisher
	metrics  Recorder
	now      Clock
	cfg      OrdersConfig
}

type Option func(*Orders)

func WithCache(c OrderCache) Option             { return func(o *Orders) { o.cache = c } }
func WithIdempotency(s IdempotencyStore) Option { return func(o *Orders) { o.idem = s } }
func WithPublisher(p EventPublisher) Option     { return func(o *Orders) { o.events = p } }
func WithRecorder(r Recorder) Option            { return func(o *Orders) { o.metrics = r } }
func WithClock(c Clock) Option                  { return func(o *Orders) { o.now = c } }

func NewOrders(repo OrderRepo, catalog ProductCatalog, accounts AccountStore, cfg OrdersConfig, opts ...Option) *Orders {
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = domain.DefaultOrderNumberPrefix
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.NumberRetries <= 0 {
		cfg.NumberRetries = defaultNumberRetries
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = defaultCompensationTimeout
	}
	if cfg.Pricing.Rates == nil {
		cfg.Pricing.Rates = domain.DefaultShippingRates()
	}
	uc := &Orders{
		repo:     repo,
		catalog:  catalog,
		accounts: accounts,
		cache:    nopCache{},
		events:   nopPublisher{},
		metrics:  nopRecorder{},
		now:      time.Now,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// mutate loads an order, applies fn and saves it, retrying on version conflicts.
func (uc *Orders) mutate(ctx context.Context, id string, fn func(o *domain.Order) error) (*domain.Order, error) {
	var lastErr error
	for attempt := 0; attempt < defaultSaveRetries; attempt++ {
		o, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(o); err != nil {
			return nil, err
		}
		err = uc.repo.Save(ctx, o)
		if err == nil {
			uc.refreshCache(ctx, o)
			return o, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		logging.FromCtx(ctx).Warn("order save conflict, retrying", "order_id", id, "attempt", attempt+1)
	}
	return nil, lastErr
}

// loadVisible fetches an order and hides it from callers who may not see it.
func (uc *Orders) loadVisible(ctx context.Context, p domain.Principal, id string) (*domain.Order, error) {
	o, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanView(o.UserID) {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (uc *Orders) refreshCache(ctx context.Context, o *domain.Order) {
	if err := uc.cache.Set(ctx, o); err != nil {
		logging.FromCtx(ctx).Warn("order cache refresh failed", "order_id", o.ID, "err", err)
	}
}

func (uc *Orders) publish(ctx context.Context, typ string, o *domain.Order) {
	ev := OrderEvent{
		Type:        typ,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Status:      string(o.Status),
		Total:       o.Pricing.Total.StringFixed(2),
		OccurredAt:  uc.now().UTC(),
	}
	if err := uc.events.Publish(ctx, ev); err != nil {
		logging.FromCtx(ctx).Warn("publish order event failed", "type", typ, "order_id", o.ID, "err", err)
	}
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*domain.Order, bool, error) { return nil, false, nil }
func (nopCache) Set(context.Context, *domain.Order) error               { return nil }
func (nopCache) Delete(context.Context, string) error                   { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, OrderEvent) error { return nil }

type nopRecorder struct{}

func (nopRecorder) OrderPlaced(float64)                      {}
func (nopRecorder) PlacementFailed(string)                   {}
func (nopRecorder) StockCompensated(int)                     {}
func (nopRecorder) RestockFailed(int)                        {}
func (nopRecorder) StatusChanged(domain.Status, domain.Status) {}
