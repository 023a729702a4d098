package mongostore

import (
	"context"
	"errors"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AccountStore reads users with their embedded cart.
type AccountStore struct{ coll *mongo.Collection }

func NewAccountStore(db *mongo.Database) *AccountStore {
	return &AccountStore{coll: db.Collection(usersColl)}
}

func (s *AccountStore) find(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var a domain.Account
	err := s.coll.FindOne(ctx, filter).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.find(ctx, bson.M{"_id": id})
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.find(ctx, bson.M{"email": email})
}

func (s *AccountStore) ClearCart(ctx context.Context, userID string) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{"cart.items": bson.A{}}})
	return err
}

var _ usecase.AccountStore = (*AccountStore)(nil)
