package memory

import (
	"context"
	"strings"
	"sync"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
)

type AccountStore struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func NewAccountStore(accounts ...domain.Account) *AccountStore {
	s := &AccountStore{accounts: make(map[string]domain.Account, len(accounts))}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *AccountStore) Put(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

func (s *AccountStore) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	a.Cart.Items = append([]domain.CartItem(nil), a.Cart.Items...)
	return &a, nil
}

func (s *AccountStore) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			a.Cart.Items = append([]domain.CartItem(nil), a.Cart.Items...)
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *AccountStore) ClearCart(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Cart = domain.Cart{}
	s.accounts[userID] = a
	return nil
}

var _ usecase.AccountStore = (*AccountStore)(nil)
