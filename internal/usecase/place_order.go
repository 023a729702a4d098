package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlaceOrderInput struct {
	Cart                domain.Cart
	ShippingAddress     domain.Address
	BillingAddress      domain.Address
	PaymentMethod       domain.PaymentMethod
	ShippingMethod      domain.ShippingMethod
	CouponCode          string
	GiftMessage         string
	SpecialInstructions string
	IdempotencyKey      string
}

// PlaceOrder turns a cart into a persisted pending order; without explicit items the
// caller's saved cart is used. Stock for every line is reserved with atomic
// conditional decrements. If anything fails before the order is stored, every
// reservation made so far is given back.
func (uc *Orders) PlaceOrder(ctx context.Context, p domain.Principal, in PlaceOrderInput) (order *domain.Order, err error) {
	if p.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	defer func() {
		if err != nil {
			uc.metrics.PlacementFailed(domain.Kind(err))
		}
	}()

	account, err := uc.accounts.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if in.Cart.Empty() {
		in.Cart = account.Cart
	}

	discount, err := uc.validate(&in)
	if err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" && uc.idem != nil {
		if id, ok, rerr := uc.idem.Recall(ctx, p.UserID, in.IdempotencyKey); rerr == nil && ok {
			return uc.repo.GetByID(ctx, id)
		}
		locked, lerr := uc.idem.TryLock(ctx, p.UserID, in.IdempotencyKey)
		if lerr != nil {
			return nil, fmt.Errorf("idempotency lock: %w", lerr)
		}
		if !locked {
			return nil, fmt.Errorf("%w: request with this idempotency key is in progress", domain.ErrConflict)
		}
		defer func() {
			if err == nil {
				return
			}
			if rerr := uc.idem.Release(context.WithoutCancel(ctx), p.UserID, in.IdempotencyKey); rerr != nil {
				logging.FromCtx(ctx).Warn("idempotency release failed", "err", rerr)
			}
		}()
	}

	items, err := uc.snapshot(ctx, in.Cart)
	if err != nil {
		return nil, err
	}

	if err := uc.reserve(ctx, items); err != nil {
		return nil, err
	}

	pricing, err := uc.cfg.Pricing.Calculate(items, in.ShippingMethod, discount)
	if err != nil {
		uc.release(ctx, items)
		return nil, err
	}

	now := uc.now()
	order = domain.NewOrder(uuid.NewString(), p.UserID, items, pricing, in.PaymentMethod, in.ShippingMethod, now)
	order.ShippingAddress = in.ShippingAddress
	order.BillingAddress = in.BillingAddress
	order.CouponCode = in.CouponCode
	order.GiftMessage = in.GiftMessage
	order.SpecialInstructions = in.SpecialInstructions
	order.CustomerEmail = account.Email
	order.CustomerPhone = account.Phone

	if err := uc.createWithNumber(ctx, order); err != nil {
		uc.release(ctx, items)
		return nil, err
	}

	l := logging.FromCtx(ctx).With("order_id", order.ID, "order_number", order.Number)
	if err := uc.accounts.ClearCart(ctx, p.UserID); err != nil {
		l.Warn("clear cart failed", "user_id", p.UserID, "err", err)
	}
	uc.refreshCache(ctx, order)
	uc.publish(ctx, EventOrderPlaced, order)
	if in.IdempotencyKey != "" && uc.idem != nil {
		if err := uc.idem.Remember(ctx, p.UserID, in.IdempotencyKey, order.ID); err != nil {
			l.Warn("idempotency remember failed", "err", err)
		}
	}
	uc.metrics.OrderPlaced(order.Pricing.Total.InexactFloat64())
	l.Info("order placed", "user_id", p.UserID, "items", order.TotalItems(), "total", order.Pricing.Total.StringFixed(2))
	return order, nil
}

// validate covers what depends on server-side state: the cart that ends up being
// ordered (possibly the saved one) and the coupon table. Request shape is checked
// by the transport before the call.
func (uc *Orders) validate(in *PlaceOrderInput) (decimal.Decimal, error) {
	v := &domain.ValidationError{}
	if in.Cart.Empty() {
		v.Add("items", "at least one item is required")
	}
	for i, it := range in.Cart.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity < 1 {
			v.Add(fmt.Sprintf("items[%d]", i), "is not a valid cart line")
		}
	}
	if in.ShippingMethod == "" {
		in.ShippingMethod = domain.ShippingStandard
	}

	discount := decimal.Zero
	if code := strings.TrimSpace(in.CouponCode); code != "" {
		amount, ok := uc.cfg.Coupons[strings.ToUpper(code)]
		if !ok {
			v.Add("couponCode", "is not a valid coupon")
		}
		discount = amount
		in.CouponCode = strings.ToUpper(code)
	}
	if err := v.OrNil(); err != nil {
		return decimal.Zero, err
	}

	in.Cart = mergeLines(in.Cart)
	return discount, nil
}

// mergeLines folds repeated products into one line, keeping first-seen order.
func mergeLines(c domain.Cart) domain.Cart {
	idx := make(map[string]int, len(c.Items))
	out := make([]domain.CartItem, 0, len(c.Items))
	for _, it := range c.Items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return domain.Cart{Items: out}
}

// snapshot checks every line against the catalog before anything is reserved.
func (uc *Orders) snapshot(ctx context.Context, cart domain.Cart) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		prod, err := uc.catalog.GetByID(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, &domain.UnavailableError{ProductID: it.ProductID}
			}
			return nil, fmt.Errorf("load product %s: %w", it.ProductID, err)
		}
		if !prod.Active {
			return nil, &domain.UnavailableError{ProductID: it.ProductID}
		}
		if it.Quantity > prod.Stock {
			return nil, &domain.StockError{ProductID: prod.ID, Name: prod.Name, Requested: it.Quantity, Available: prod.Stock}
		}
		items = append(items, domain.LineItem{
			ProductID: prod.ID,
			Name:      prod.Name,
			UnitPrice: prod.Price,
			Quantity:  it.Quantity,
			Image:     prod.Image,
		})
	}
	return items, nil
}

// reserve decrements stock line by line. On the first rejection every earlier
// decrement is compensated before the error is returned.
func (uc *Orders) reserve(ctx context.Context, items []domain.LineItem) error {
	for i, it := range items {
		err := uc.catalog.AdjustStock(ctx, it.ProductID, -it.Quantity)
		if err == nil {
			continue
		}
		uc.release(ctx, items[:i])
		if !errors.Is(err, domain.ErrStockConflict) {
			return fmt.Errorf("reserve stock for %s: %w", it.ProductID, err)
		}
		available := 0
		if prod, gerr := uc.catalog.GetByID(context.WithoutCancel(ctx), it.ProductID); gerr == nil {
			available = prod.Stock
		}
		return &domain.StockError{ProductID: it.ProductID, Name: it.Name, Requested: it.Quantity, Available: available}
	}
	return nil
}

// release gives reserved stock back. It runs detached from the request context so
// a timed-out request still rolls back.
func (uc *Orders) release(ctx context.Context, items []domain.LineItem) {
	if len(items) == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.CompensationTimeout)
	defer cancel()

	l := logging.FromCtx(ctx)
	for _, it := range items {
		if err := uc.catalog.AdjustStock(cctx, it.ProductID, it.Quantity); err != nil {
			l.Error("stock compensation failed", "product_id", it.ProductID, "quantity", it.Quantity, "err", err)
		}
	}
	uc.metrics.StockCompensated(len(items))
}

func (uc *Orders) createWithNumber(ctx context.Context, o *domain.Order) error {
	day := o.CreatedAt.In(uc.cfg.Location)
	prefix := domain.OrderNumberPrefix(uc.cfg.NumberPrefix, day)

	for attempt := 1; attempt <= uc.cfg.NumberRetries; attempt++ {
		last, err := uc.repo.LastNumberWithPrefix(ctx, prefix)
		if err != nil {
			return fmt.Errorf("last order number: %w", err)
		}
		number, err := domain.NextOrderNumber(uc.cfg.NumberPrefix, day, last)
		if err != nil {
			return err
		}
		o.Number = number

		err = uc.repo.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			return fmt.Errorf("create order: %w", err)
		}
		logging.FromCtx(ctx).Warn("order number taken, retrying", "number", number, "attempt", attempt)
	}
	return fmt.Errorf("allocate order number after %d attempts: %w", uc.cfg.NumberRetries, domain.ErrDuplicateOrderNumber)
}
