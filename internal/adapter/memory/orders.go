package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/shopspring/decimal"
)

type OrderStore struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	byNumber map[string]string
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:   make(map[string]*domain.Order),
		byNumber: make(map[string]string),
	}
}

func (s *OrderStore) Create(ctx context.Context, o *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNumber[o.Number]; taken {
		return domain.ErrDuplicateOrderNumber
	}
	o.Version = 1
	s.orders[o.ID] = clone(o)
	s.byNumber[o.Number] = o.ID
	return nil
}

func (s *OrderStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(o), nil
}

func (s *OrderStore) LastNumberWithPrefix(_ context.Context, prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := ""
	for n := range s.byNumber {
		if strings.HasPrefix(n, prefix) && n > last {
			last = n
		}
	}
	return last, nil
}

func (s *OrderStore) List(_ context.Context, f usecase.ListFilter) ([]*domain.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]*domain.Order, 0)
	for _, o := range s.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Number > matched[j].Number
	})

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []*domain.Order{}, total, nil
	}
	end := len(matched)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	out := make([]*domain.Order, 0, end-f.Offset)
	for _, o := range matched[f.Offset:end] {
		out = append(out, clone(o))
	}
	return out, total, nil
}

func (s *OrderStore) Save(ctx context.Context, o *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[o.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != o.Version {
		return domain.ErrVersionConflict
	}
	o.Version++
	s.orders[o.ID] = clone(o)
	return nil
}

func (s *OrderStore) CountByStatus(context.Context) ([]usecase.StatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[domain.Status]int64{}
	for _, o := range s.orders {
		counts[o.Status]++
	}
	out := make([]usecase.StatusCount, 0, len(counts))
	for st, n := range counts {
		out = append(out, usecase.StatusCount{Status: st, Count: n})
	}
	return out, nil
}

func (s *OrderStore) Revenue(_ context.Context, statuses []domain.Status) (usecase.RevenueSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[domain.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	total := decimal.Zero
	n := int64(0)
	for _, o := range s.orders {
		if want[o.Status] {
			total = total.Add(o.Pricing.Total)
			n++
		}
	}
	avg := decimal.Zero
	if n > 0 {
		avg = total.Div(decimal.NewFromInt(n))
	}
	return usecase.RevenueSummary{Total: total, Average: avg}, nil
}

// clone copies the order and its append-only slices so callers never share
// backing arrays with the store.
func clone(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.LineItem(nil), o.Items...)
	c.StatusHistory = append([]domain.StatusChange(nil), o.StatusHistory...)
	c.Notes = append([]domain.Note{}, o.Notes...)
	return &c
}

var _ usecase.OrderRepo = (*OrderStore)(nil)
